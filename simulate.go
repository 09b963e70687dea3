package murmur

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/hiway/murmur/pkg/clock"
	"github.com/hiway/murmur/pkg/player"
	"github.com/hiway/murmur/pkg/playlist"
	"github.com/hiway/murmur/pkg/sample"
	"github.com/hiway/murmur/pkg/scheduler"
	"github.com/hiway/murmur/pkg/storage"
)

// SimOptions configures a simulated run.
type SimOptions struct {
	Fs         afero.Fs
	Root       string
	ConfigFile string
	Cycles     int
	ClipMs     uint64
	TickMs     uint64
	Seed       uint64
}

// SimReport summarises a simulated run.
type SimReport struct {
	Schedule  *playlist.Schedule
	Counts    []int
	Plays     int
	Failures  int
	MinWaitMs uint64
	MaxWaitMs uint64
	ElapsedMs uint64

	waitSeen bool
}

// observeWait folds one scheduled wait into the min/max range.
func (r *SimReport) observeWait(wait uint64) {
	if !r.waitSeen || wait < r.MinWaitMs {
		r.MinWaitMs = wait
	}
	if !r.waitSeen || wait > r.MaxWaitMs {
		r.MaxWaitMs = wait
	}
	r.waitSeen = true
}

// Simulate runs the scheduler against a synthetic clock and a stub player
// until Cycles clips have been started, then reports what was played.
func Simulate(opts SimOptions, log zerolog.Logger) (*SimReport, error) {
	if opts.Cycles <= 0 {
		return nil, errors.New("cycles must be positive")
	}
	if opts.TickMs == 0 {
		opts.TickMs = 5
	}
	if opts.ConfigFile == "" {
		opts.ConfigFile = playlist.DefaultFile
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	card := storage.NewCard(opts.Fs, opts.Root, log)
	if err := card.Mount(); err != nil {
		return nil, err
	}
	// Fail fast with the parse error instead of retrying forever.
	if _, err := playlist.Load(card, opts.ConfigFile, zerolog.Nop()); err != nil {
		return nil, err
	}
	card.Unmount()

	clk := clock.NewManual(0)
	pl := player.NewStubPlayer(clk, opts.ClipMs, card, log)
	sopts := scheduler.DefaultOptions()
	sopts.ConfigFile = opts.ConfigFile
	sopts.Settle = 0
	s := scheduler.New(sopts, card, pl, sample.NewSource(opts.Seed), log)

	rep := &SimReport{}
	prev := s.Phase()
	attempts := 0
	// Bound the run so a playlist of unplayable clips cannot spin forever.
	for now := clk.NowMs(); pl.PlayCount()+rep.Failures < opts.Cycles; now = clk.Advance(opts.TickMs) {
		s.Tick(now)
		phase := s.Phase()
		if phase == scheduler.Scheduled && prev != scheduler.Scheduled {
			rep.observeWait(s.State().Pending.PlayAt - now)
		}
		if phase == scheduler.Playing && prev == scheduler.Scheduled {
			attempts++
			rep.Failures = attempts - pl.PlayCount()
		}
		prev = phase
	}

	rep.Schedule = s.Schedule()
	rep.Counts = s.Counts()
	rep.Plays = pl.PlayCount()
	rep.ElapsedMs = clk.NowMs()
	if rep.Schedule == nil {
		return nil, fmt.Errorf("playlist was not loaded")
	}
	return rep, nil
}
