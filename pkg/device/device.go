// Package device is the outer driver: it samples the clock and runs every
// component once per tick on a single goroutine.
package device

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiway/murmur/pkg/button"
	"github.com/hiway/murmur/pkg/clock"
	"github.com/hiway/murmur/pkg/gpio"
	"github.com/hiway/murmur/pkg/indicator"
	"github.com/hiway/murmur/pkg/player"
	"github.com/hiway/murmur/pkg/sample"
	"github.com/hiway/murmur/pkg/scheduler"
)

// Lines assigns digital lines. AmpMute < 0 means there is no mute line.
type Lines struct {
	LED     int
	Button  int
	AmpMute int
}

// Options configures a Device.
type Options struct {
	Lines      Lines
	Tick       time.Duration
	DebounceMs uint64
	Indicator  indicator.Options
	Scheduler  scheduler.Options
}

// Device manages the tick loop.
type Device struct {
	log    zerolog.Logger
	clock  clock.Clock
	pins   gpio.Pins
	player player.Player
	lines  Lines
	tick   time.Duration

	button    *button.Debouncer
	indicator *indicator.Indicator
	sched     *scheduler.Scheduler

	led      bool
	ledKnown bool
	presses  int

	stopOnce sync.Once
	stopChan chan struct{}
}

// New wires the components. The amplifier, if any, starts muted.
func New(opts Options, c clock.Clock, pins gpio.Pins, st scheduler.Storage, pl player.Player, src sample.Source, log zerolog.Logger) *Device {
	log = log.With().Str("component", "device").Logger()

	if opts.Tick <= 0 {
		opts.Tick = 5 * time.Millisecond
	}
	if opts.Lines.AmpMute >= 0 {
		line := opts.Lines.AmpMute
		opts.Scheduler.Mute = func(muted bool) { pins.Write(line, muted) }
		pins.Write(line, true)
	}

	return &Device{
		log:       log,
		clock:     c,
		pins:      pins,
		player:    pl,
		lines:     opts.Lines,
		tick:      opts.Tick,
		button:    button.New(opts.DebounceMs),
		indicator: indicator.New(opts.Indicator),
		sched:     scheduler.New(opts.Scheduler, st, pl, src, log),
		stopChan:  make(chan struct{}),
	}
}

// Tick runs one cooperative pass: button, scheduler, then indicator.
func (d *Device) Tick() {
	now := d.clock.NowMs()

	if d.button.Poll(d.pins.Read(d.lines.Button), now) {
		d.presses++
		d.log.Info().Uint64("now", now).Msg("Button pressed")
		d.sched.Trigger(now)
	}

	d.sched.Tick(now)

	lit := d.indicator.Tick(now, d.sched.Running())
	if !d.ledKnown || lit != d.led {
		d.pins.Write(d.lines.LED, lit)
		d.led = lit
		d.ledKnown = true
	}
}

// Run ticks until ctx is cancelled or Stop is called.
func (d *Device) Run(ctx context.Context) error {
	d.log.Info().Dur("tick", d.tick).Msg("Device started")
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	d.Tick()
	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("Context canceled, stopping device")
			d.Stop()
			return nil
		case <-d.stopChan:
			return nil
		case <-ticker.C:
			d.Tick()
		}
	}
}

// Stop turns the LED off, mutes the amplifier and closes the player.
func (d *Device) Stop() {
	d.stopOnce.Do(func() {
		d.log.Debug().Msg("Stopping device")
		close(d.stopChan)

		d.pins.Write(d.lines.LED, false)
		if d.lines.AmpMute >= 0 {
			d.pins.Write(d.lines.AmpMute, true)
		}
		if err := d.player.Close(); err != nil {
			d.log.Error().Err(err).Msg("Error closing audio player")
		}
		d.log.Info().Int("presses", d.presses).Msg("Device stopped")
	})
}

// Scheduler exposes the state machine for status reporting.
func (d *Device) Scheduler() *scheduler.Scheduler {
	return d.sched
}
