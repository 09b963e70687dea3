package player

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
	"github.com/rs/zerolog"

	"github.com/hiway/murmur/pkg/clock"
)

const (
	// SampleRate is the output rate; clips are resampled to it on decode.
	SampleRate = 48000
	// ChannelCount represents stereo audio
	ChannelCount = 2
)

// Player plays one clip at a time. Play must return promptly; IsPlaying is
// polled every tick to detect completion.
type Player interface {
	Play(path string) error
	IsPlaying() bool
	Close() error
}

// Opener resolves storage-relative clip paths.
type Opener interface {
	Open(path string) (io.ReadCloser, error)
}

var (
	otoCtx *oto.Context
	once   sync.Once
	ctxErr error
)

// initOtoContext initializes the oto context singleton.
func initOtoContext() (*oto.Context, error) {
	once.Do(func() {
		op := &oto.NewContextOptions{}
		op.SampleRate = SampleRate
		op.ChannelCount = ChannelCount
		op.Format = oto.FormatSignedInt16LE

		var readyChan chan struct{}
		otoCtx, readyChan, ctxErr = oto.NewContext(op)
		if ctxErr == nil {
			<-readyChan // Wait for the context to be ready
		}
	})
	return otoCtx, ctxErr
}

// OtoPlayer decodes WAV clips from storage and plays them through oto.
// Starting a clip stops the previous one.
type OtoPlayer struct {
	log zerolog.Logger
	ctx *oto.Context
	src Opener

	mu      sync.Mutex // Protects current, file and path
	current *oto.Player
	file    io.Closer
	path    string
}

// NewOtoPlayer creates a player that reads clips through src.
func NewOtoPlayer(src Opener, log zerolog.Logger) (*OtoPlayer, error) {
	ctx, err := initOtoContext()
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize Oto audio context")
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	log.Debug().Msg("Oto audio context initialized successfully")

	return &OtoPlayer{
		log: log.With().Str("player_type", "oto").Logger(),
		ctx: ctx,
		src: src,
	}, nil
}

// Play opens and starts path. The WAV stream is decoded lazily by the audio
// goroutine, so only the header is read here.
func (p *OtoPlayer) Play(path string) error {
	stream, f, err := openClip(p.src, path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.releaseLocked()

	pl := p.ctx.NewPlayer(stream)
	pl.Play()
	p.current = pl
	p.file = f
	p.path = path

	p.log.Debug().Str("path", path).Int64("bytes", stream.Length()).Msg("Started clip")
	return nil
}

// IsPlaying reports whether the current clip is still producing audio.
func (p *OtoPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return false
	}
	if p.current.IsPlaying() {
		return true
	}
	if err := p.current.Err(); err != nil {
		p.log.Warn().Err(err).Str("path", p.path).Msg("Clip ended with error")
	}
	p.releaseLocked()
	return false
}

// openClip opens path through src and decodes its WAV header. Sources that
// cannot seek are read into memory first. The returned closer releases the
// underlying file once playback is done.
func openClip(src Opener, path string) (*wav.Stream, io.Closer, error) {
	f, err := src.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open clip '%s': %w", path, err)
	}

	var in io.Reader = f
	if _, ok := f.(io.ReadSeeker); !ok {
		raw, err := io.ReadAll(f)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("failed to read clip '%s': %w", path, err)
		}
		in = bytes.NewReader(raw)
	}

	stream, err := wav.DecodeWithSampleRate(SampleRate, in)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to decode clip '%s': %w", path, err)
	}
	return stream, f, nil
}

func (p *OtoPlayer) releaseLocked() {
	if p.current != nil {
		if err := p.current.Close(); err != nil {
			p.log.Debug().Err(err).Str("path", p.path).Msg("Error closing oto player")
		}
		p.current = nil
	}
	if p.file != nil {
		p.file.Close()
		p.file = nil
	}
	p.path = ""
}

// Close stops any clip. The oto context is process wide and stays open.
func (p *OtoPlayer) Close() error {
	p.log.Debug().Msg("Closing OtoPlayer")
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releaseLocked()
	return nil
}

// --- StubPlayer ---

// StubPlayer pretends every clip lasts ClipMs on the given clock. It is used
// by the simulator and in tests.
type StubPlayer struct {
	log    zerolog.Logger
	clock  clock.Clock
	src    Opener
	clipMs uint64

	mu      sync.Mutex
	until   uint64
	playing bool
	plays   []string
}

// NewStubPlayer creates a StubPlayer. When src is non-nil, Play fails for
// clips that cannot be opened, like the real player would.
func NewStubPlayer(c clock.Clock, clipMs uint64, src Opener, log zerolog.Logger) *StubPlayer {
	return &StubPlayer{
		log:    log.With().Str("player_type", "stub").Logger(),
		clock:  c,
		src:    src,
		clipMs: clipMs,
	}
}

// Play records path and simulates playback for ClipMs.
func (p *StubPlayer) Play(path string) error {
	if p.src != nil {
		f, err := p.src.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open clip '%s': %w", path, err)
		}
		f.Close()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
	p.until = p.clock.NowMs() + p.clipMs
	p.plays = append(p.plays, path)
	p.log.Debug().Str("path", path).Uint64("clip_ms", p.clipMs).Msg("Simulating clip")
	return nil
}

func (p *StubPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing && p.clock.NowMs() >= p.until {
		p.playing = false
	}
	return p.playing
}

// Plays returns every path passed to a successful Play, in order.
func (p *StubPlayer) Plays() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.plays...)
}

// PlayCount is len(Plays()) without the copy.
func (p *StubPlayer) PlayCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.plays)
}

// Close cleans up the StubPlayer resources.
func (p *StubPlayer) Close() error {
	p.log.Debug().Msg("Closing StubPlayer")
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
	return nil
}

var (
	_ Player = (*OtoPlayer)(nil)
	_ Player = (*StubPlayer)(nil)
)
