// Package scheduler is the playback state machine. It is driven entirely by
// Tick calls carrying the current time and never waits on anything except
// the bounded settle delay after a clip is started.
//
//	AcquiringStorage -> LoadingConfig -> Scheduled -> Playing -> Scheduled ...
//	LoadingConfig (failure) -> AcquiringStorage
package scheduler

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiway/murmur/pkg/playlist"
	"github.com/hiway/murmur/pkg/sample"
)

// Phase is the coarse state of the machine.
type Phase int

const (
	AcquiringStorage Phase = iota
	LoadingConfig
	Scheduled
	Playing
)

func (p Phase) String() string {
	switch p {
	case AcquiringStorage:
		return "acquiring-storage"
	case LoadingConfig:
		return "loading-config"
	case Scheduled:
		return "scheduled"
	case Playing:
		return "playing"
	default:
		return "unknown"
	}
}

// Storage is the removable card holding the playlist and clips.
type Storage interface {
	Mount() error
	Unmount()
	Open(path string) (io.ReadCloser, error)
}

// Player is the single-stream playback capability.
type Player interface {
	Play(path string) error
	IsPlaying() bool
}

// Options tunes the machine. Times are in milliseconds unless noted.
type Options struct {
	ConfigFile        string
	RetryPeriodMs     uint64
	CompletionGraceMs uint64

	// Settle is slept once after issuing play so the audio hardware can
	// stabilise. Zero disables it.
	Settle time.Duration
	Sleep  func(time.Duration)

	// Mute drives the amplifier mute line, if there is one.
	Mute func(muted bool)
}

// DefaultOptions is the stock device timing.
func DefaultOptions() Options {
	return Options{
		ConfigFile:        playlist.DefaultFile,
		RetryPeriodMs:     1000,
		CompletionGraceMs: 100,
		Settle:            50 * time.Millisecond,
	}
}

// Pending is the next clip and when to start it.
type Pending struct {
	PlayAt uint64
	Index  int
}

// State is the machine's working memory. Only the Scheduler writes it.
type State struct {
	StorageReady       bool
	ConfigReady        bool
	LastStorageAttempt uint64
	Pending            *Pending
	LastPlayStarted    uint64

	// PlayAt is when the current or upcoming clip was due. Completion is
	// not trusted until CompletionGraceMs past it.
	PlayAt uint64
	// OverrideArmed makes the next schedule due immediately. Set when the
	// button is pressed while a clip plays.
	OverrideArmed bool
}

// Scheduler owns State and the loaded playlist.
type Scheduler struct {
	opts    Options
	storage Storage
	player  Player
	sampler *sample.Sampler
	log     zerolog.Logger
	baseLog zerolog.Logger

	state  State
	sched  *playlist.Schedule
	counts []int
}

// New returns a machine in AcquiringStorage.
func New(opts Options, st Storage, pl Player, src sample.Source, log zerolog.Logger) *Scheduler {
	if opts.ConfigFile == "" {
		opts.ConfigFile = playlist.DefaultFile
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &Scheduler{
		opts:    opts,
		storage: st,
		player:  pl,
		sampler: sample.New(src),
		log:     log.With().Str("component", "scheduler").Logger(),
		baseLog: log,
	}
}

// Tick runs one pass of the machine at time now.
func (s *Scheduler) Tick(now uint64) {
	st := &s.state
	if !st.StorageReady && now >= st.LastStorageAttempt+s.opts.RetryPeriodMs {
		s.acquire(now)
	}
	if !st.StorageReady || !st.ConfigReady {
		return
	}

	if st.Pending != nil {
		if now >= st.Pending.PlayAt {
			s.start(now)
		}
		return
	}
	if !s.player.IsPlaying() && now >= st.PlayAt+s.opts.CompletionGraceMs {
		s.log.Debug().Uint64("now", now).Msg("Clip finished")
		s.mute(true)
		s.schedule(now)
	}
}

// Trigger is the manual override: the pending clip becomes due now. While a
// clip plays it does not interrupt it; the next clip is due as soon as the
// current one completes. It returns false when nothing is loaded yet.
func (s *Scheduler) Trigger(now uint64) bool {
	st := &s.state
	if !st.StorageReady || !st.ConfigReady {
		s.log.Debug().Msg("Ignoring override, no playlist loaded")
		return false
	}
	if st.Pending != nil {
		if st.Pending.PlayAt > now {
			st.Pending.PlayAt = now
			st.PlayAt = now
		}
		s.log.Info().Msg("Override: playing now")
		return true
	}
	st.OverrideArmed = true
	s.log.Info().Msg("Override: next clip follows the current one")
	return true
}

func (s *Scheduler) acquire(now uint64) {
	st := &s.state
	st.LastStorageAttempt = now
	if err := s.storage.Mount(); err != nil {
		s.log.Warn().Err(err).Msg("Unable to access the storage")
		return
	}
	st.StorageReady = true
	s.log.Info().Msg("Storage mounted")
	s.load(now)
}

func (s *Scheduler) load(now uint64) {
	st := &s.state
	sched, err := playlist.Load(s.storage, s.opts.ConfigFile, s.baseLog)
	if err != nil {
		s.log.Warn().Err(err).Str("file", s.opts.ConfigFile).Msg("Unable to read playlist from storage")
		st.StorageReady = false
		st.ConfigReady = false
		st.Pending = nil
		st.OverrideArmed = false
		s.sched = nil
		s.counts = nil
		s.storage.Unmount()
		return
	}

	s.sched = sched
	s.counts = make([]int, len(sched.Entries))
	st.ConfigReady = true
	s.log.Info().
		Uint64("min_delay_ms", sched.MinDelayMs).
		Uint64("max_delay_ms", sched.MaxDelayMs).
		Int("entries", len(sched.Entries)).
		Int("skipped_lines", len(sched.Skipped)).
		Msg("Playlist loaded")
	s.schedule(now)
}

func (s *Scheduler) schedule(now uint64) {
	st := &s.state
	pick := s.sampler.Next(s.sched)
	playAt := now + pick.DelayMs
	if st.OverrideArmed {
		playAt = now
		st.OverrideArmed = false
	}
	st.Pending = &Pending{PlayAt: playAt, Index: pick.Index}
	st.PlayAt = playAt

	e := s.sched.Entries[pick.Index]
	s.log.Info().
		Str("path", e.Path).
		Uint64("weight", e.Weight).
		Uint64("total_weight", s.sched.TotalWeight).
		Uint64("in_ms", playAt-now).
		Msg("Scheduled clip")
}

func (s *Scheduler) start(now uint64) {
	st := &s.state
	idx := st.Pending.Index
	e := s.sched.Entries[idx]

	s.log.Info().Str("path", e.Path).Msg("Playing clip")
	s.mute(false)
	if err := s.player.Play(e.Path); err != nil {
		s.log.Warn().Err(err).Str("path", e.Path).Msg("Failed to play clip")
	} else {
		s.counts[idx]++
	}
	if s.opts.Settle > 0 {
		s.opts.Sleep(s.opts.Settle)
	}
	st.LastPlayStarted = now
	st.Pending = nil
}

func (s *Scheduler) mute(muted bool) {
	if s.opts.Mute != nil {
		s.opts.Mute(muted)
	}
}

// Phase reports the coarse state.
func (s *Scheduler) Phase() Phase {
	switch {
	case !s.state.StorageReady:
		return AcquiringStorage
	case !s.state.ConfigReady:
		return LoadingConfig
	case s.state.Pending != nil:
		return Scheduled
	default:
		return Playing
	}
}

// Running reports whether a playlist is loaded and clips are being scheduled.
func (s *Scheduler) Running() bool {
	return s.state.StorageReady && s.state.ConfigReady
}

// State returns a copy of the working memory.
func (s *Scheduler) State() State {
	st := s.state
	if st.Pending != nil {
		p := *st.Pending
		st.Pending = &p
	}
	return st
}

// Schedule returns the loaded playlist, or nil.
func (s *Scheduler) Schedule() *playlist.Schedule {
	return s.sched
}

// Counts returns how many times each entry was started since the playlist
// was loaded, indexed like Schedule().Entries.
func (s *Scheduler) Counts() []int {
	return append([]int(nil), s.counts...)
}
