package device

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/hiway/murmur/pkg/clock"
	"github.com/hiway/murmur/pkg/gpio"
	"github.com/hiway/murmur/pkg/indicator"
	"github.com/hiway/murmur/pkg/player"
	"github.com/hiway/murmur/pkg/sample"
	"github.com/hiway/murmur/pkg/scheduler"
	"github.com/hiway/murmur/pkg/storage"
)

const (
	ledLine    = 13
	buttonLine = 2
	muteLine   = 4
)

type rig struct {
	clock  *clock.Manual
	pins   *gpio.Memory
	player *player.StubPlayer
	dev    *Device
}

func newRig(t *testing.T, playlist string, mute int) *rig {
	t.Helper()
	fs := afero.NewMemMapFs()
	files := map[string]string{"CONFIG.TXT": playlist, "a.wav": "RIFF", "b.wav": "RIFF"}
	for name, body := range files {
		if err := afero.WriteFile(fs, "/sd/"+name, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	card := storage.NewCard(fs, "/sd", zerolog.Nop())
	c := clock.NewManual(0)
	pins := gpio.NewMemory()
	pl := player.NewStubPlayer(c, 200, card, zerolog.Nop())

	sopts := scheduler.DefaultOptions()
	sopts.Settle = 0
	dev := New(Options{
		Lines:      Lines{LED: ledLine, Button: buttonLine, AmpMute: mute},
		DebounceMs: 100,
		Indicator:  indicator.DefaultOptions(),
		Scheduler:  sopts,
	}, c, pins, card, pl, sample.NewSource(5), zerolog.Nop())
	return &rig{clock: c, pins: pins, player: pl, dev: dev}
}

func (r *rig) runUntil(ms uint64) {
	for r.clock.NowMs() < ms {
		r.dev.Tick()
		r.clock.Advance(5)
	}
}

func TestDeviceLoadsAndRuns(t *testing.T) {
	r := newRig(t, "60000\n60001\na.wav 1\n", -1)
	r.runUntil(900)
	if r.dev.Scheduler().Running() {
		t.Fatalf("running before first storage attempt")
	}
	r.runUntil(1100)
	if !r.dev.Scheduler().Running() {
		t.Fatalf("not running after first storage attempt")
	}
	if len(r.pins.Writes(ledLine)) == 0 {
		t.Errorf("LED never driven")
	}
	if len(r.pins.Writes(muteLine)) != 0 {
		t.Errorf("mute line driven while disabled")
	}
}

func TestDeviceButtonPlaysNow(t *testing.T) {
	r := newRig(t, "60000\n60001\na.wav 1\n", -1)
	r.runUntil(2000)
	if len(r.player.Plays()) != 0 {
		t.Fatalf("played before the button was pressed")
	}

	r.pins.Set(buttonLine, false)
	r.runUntil(2080)
	r.pins.Set(buttonLine, true)
	r.runUntil(2150)
	if len(r.player.Plays()) != 0 {
		t.Fatalf("played before the debounce window elapsed")
	}
	r.runUntil(2300)
	if got := r.player.Plays(); len(got) != 1 || got[0] != "a.wav" {
		t.Fatalf("Plays() = %v, want one a.wav", got)
	}
	if r.dev.presses != 1 {
		t.Errorf("presses = %d, want 1", r.dev.presses)
	}
}

func TestDeviceAmpMute(t *testing.T) {
	r := newRig(t, "1000\n1001\na.wav 1\n", muteLine)
	if w := r.pins.Writes(muteLine); len(w) != 1 || !w[0] {
		t.Fatalf("mute line writes at start = %v, want [true]", w)
	}
	// Loaded at 1000, plays at 2000, clip ends at 2200.
	r.runUntil(2500)
	w := r.pins.Writes(muteLine)
	if len(w) != 3 || !w[0] || w[1] || !w[2] {
		t.Errorf("mute line writes = %v, want [true false true]", w)
	}
}

func TestDeviceIndicatorReflectsState(t *testing.T) {
	r := newRig(t, "5000\n1000\na.wav 1\n", -1) // never valid
	r.runUntil(12000)
	if r.dev.Scheduler().Running() {
		t.Fatalf("running with an invalid playlist")
	}
	// Boot flashes plus a searching cycle every 1500 ms.
	if n := len(r.pins.Writes(ledLine)); n < 14 {
		t.Errorf("LED writes = %d, want searching cadence", n)
	}
}

func TestDeviceRunStops(t *testing.T) {
	fs := afero.NewMemMapFs()
	card := storage.NewCard(fs, "/sd", zerolog.Nop())
	c := clock.NewMonotonic()
	pins := gpio.NewMemory()
	pl := player.NewStubPlayer(c, 10, nil, zerolog.Nop())
	dev := New(Options{
		Lines:      Lines{LED: ledLine, Button: buttonLine, AmpMute: muteLine},
		Tick:       time.Millisecond,
		DebounceMs: 100,
		Indicator:  indicator.DefaultOptions(),
		Scheduler:  scheduler.DefaultOptions(),
	}, c, pins, card, pl, sample.NewSource(1), zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- dev.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() did not return after cancellation")
	}

	if w := pins.Writes(ledLine); len(w) == 0 || w[len(w)-1] {
		t.Errorf("LED not left off: %v", w)
	}
	if w := pins.Writes(muteLine); len(w) < 2 || !w[len(w)-1] {
		t.Errorf("amp not left muted: %v", w)
	}
	dev.Stop() // idempotent
}
