// Package murmur is an ambient sound player: it reads a weighted playlist
// from a removable card and plays random clips at random intervals, with a
// status LED and a play-now button.
package murmur

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/hiway/murmur/pkg/clock"
	"github.com/hiway/murmur/pkg/config"
	"github.com/hiway/murmur/pkg/console"
	"github.com/hiway/murmur/pkg/device"
	"github.com/hiway/murmur/pkg/gpio"
	"github.com/hiway/murmur/pkg/indicator"
	"github.com/hiway/murmur/pkg/player"
	"github.com/hiway/murmur/pkg/sample"
	"github.com/hiway/murmur/pkg/scheduler"
	"github.com/hiway/murmur/pkg/storage"
)

// Version of murmur.
const Version = "0.4.0"

// Options holds what New needs besides the settings.
type Options struct {
	// Stdin feeds the console pin backend.
	Stdin io.Reader
	// OnQuit is called when the console asks to quit.
	OnQuit func()
	// Fs is the filesystem holding the card and sysfs. Defaults to the OS.
	Fs afero.Fs
	// Player overrides the audio output, mainly for tests.
	Player player.Player
}

// Murmur is a wired device ready to run.
type Murmur struct {
	Device  *device.Device
	Card    *storage.Card
	console *console.Console
	log     zerolog.Logger
}

// New builds the device described by cfg.
func New(cfg *config.Config, opts Options, log zerolog.Logger) (*Murmur, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	clk := clock.NewMonotonic()
	card := storage.NewCard(opts.Fs, cfg.Storage.Root, log)

	m := &Murmur{Card: card, log: log.With().Str("component", "murmur").Logger()}

	pins, err := m.pins(cfg, opts, clk, log)
	if err != nil {
		return nil, err
	}

	pl := opts.Player
	if pl == nil {
		p, err := player.NewOtoPlayer(card, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create audio player: %w", err)
		}
		pl = p
	}

	seed := cfg.Playback.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	m.Device = device.New(DeviceOptions(cfg), clk, pins, card, pl, sample.NewSource(seed), log)
	m.log.Debug().Uint64("seed", seed).Str("pins", cfg.Pins.Backend).Msg("Device wired")
	return m, nil
}

func (m *Murmur) pins(cfg *config.Config, opts Options, clk clock.Clock, log zerolog.Logger) (gpio.Pins, error) {
	p := cfg.Pins
	switch p.Backend {
	case config.BackendConsole:
		c := console.New(opts.Stdin, clk, p.Button, p.ButtonKey[0], log)
		c.Name(p.LED, "led")
		if p.MuteEnabled() {
			c.Name(p.AmpMute, "amp_mute")
		}
		c.OnQuit = opts.OnQuit
		m.console = c
		return c, nil
	case config.BackendSysfs:
		s := gpio.NewSysfs(opts.Fs, p.SysfsRoot, log)
		if err := s.Setup(p.LED, gpio.Out); err != nil {
			return nil, err
		}
		if err := s.Setup(p.Button, gpio.In); err != nil {
			return nil, err
		}
		if p.MuteEnabled() {
			if err := s.Setup(p.AmpMute, gpio.Out); err != nil {
				return nil, err
			}
		}
		return s, nil
	case config.BackendMemory:
		return gpio.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown pins backend '%s'", p.Backend)
	}
}

// Run drives the device until ctx is cancelled.
func (m *Murmur) Run(ctx context.Context) error {
	if m.console != nil {
		if err := m.console.Start(); err != nil {
			return fmt.Errorf("failed to start console: %w", err)
		}
		defer m.console.Stop()
	}
	return m.Device.Run(ctx)
}

// DeviceOptions maps settings onto the device components.
func DeviceOptions(cfg *config.Config) device.Options {
	mute := -1
	if cfg.Pins.MuteEnabled() {
		mute = cfg.Pins.AmpMute
	}
	return device.Options{
		Lines: device.Lines{
			LED:     cfg.Pins.LED,
			Button:  cfg.Pins.Button,
			AmpMute: mute,
		},
		Tick:       time.Duration(cfg.Playback.TickMs) * time.Millisecond,
		DebounceMs: cfg.Button.DebounceMs,
		Indicator: indicator.Options{
			OnMs:        cfg.Indicator.OnMs,
			SearchingMs: cfg.Indicator.SearchingMs,
			RunningMs:   cfg.Indicator.RunningMs,
			BootFlashes: cfg.Indicator.BootFlashes,
			BootFlashMs: cfg.Indicator.BootFlashMs,
		},
		Scheduler: scheduler.Options{
			ConfigFile:        cfg.Storage.ConfigFile,
			RetryPeriodMs:     cfg.Storage.RetryPeriodMs,
			CompletionGraceMs: cfg.Playback.CompletionGraceMs,
			Settle:            time.Duration(cfg.Playback.SettleMs) * time.Millisecond,
		},
	}
}
