// Package indicator blinks the status LED. The off period tells how far the
// device got: short while it is still looking for storage and a playlist,
// long once it is playing.
package indicator

// Options configures the blink timing, in milliseconds.
type Options struct {
	OnMs        uint64
	SearchingMs uint64
	RunningMs   uint64

	// BootFlashes quick flashes of BootFlashMs on / BootFlashMs off are shown
	// before the regular cycle starts.
	BootFlashes int
	BootFlashMs uint64
}

// DefaultOptions is the stock device timing.
func DefaultOptions() Options {
	return Options{
		OnMs:        500,
		SearchingMs: 1000,
		RunningMs:   5000,
		BootFlashes: 3,
		BootFlashMs: 250,
	}
}

// Indicator is a two-phase timer. It only reads system state and never
// affects any other component.
type Indicator struct {
	opts Options

	lit     bool
	last    uint64
	started bool
	boot    int // boot transitions still to show
}

// New returns an indicator in the off phase.
func New(opts Options) *Indicator {
	return &Indicator{opts: opts, boot: 2 * opts.BootFlashes}
}

// Lit reports the current LED level.
func (ind *Indicator) Lit() bool {
	return ind.lit
}

func (ind *Indicator) booting() bool {
	return ind.boot > 0
}

// OffPeriod is how long the LED stays dark for the given state.
func (ind *Indicator) OffPeriod(running bool) uint64 {
	if running {
		return ind.opts.RunningMs
	}
	return ind.opts.SearchingMs
}

// Tick advances the timer and returns the LED level to drive.
func (ind *Indicator) Tick(now uint64, running bool) bool {
	if !ind.started {
		ind.started = true
		if ind.boot > 0 {
			ind.lit = true
			ind.last = now
			ind.boot--
			return ind.lit
		}
	}

	if ind.boot > 0 {
		if now >= ind.last+ind.opts.BootFlashMs {
			ind.lit = !ind.lit
			ind.last = now
			ind.boot--
		}
		return ind.lit
	}

	switch {
	case !ind.lit && now >= ind.last+ind.OffPeriod(running):
		ind.lit = true
		ind.last = now
	case ind.lit && now >= ind.last+ind.opts.OnMs:
		ind.lit = false
		ind.last = now
	}
	return ind.lit
}
