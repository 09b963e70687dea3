// Package button turns a polled, active-low push button into a single
// release event once the line has been stable long enough.
package button

// DefaultDebounceMs is how long the line must read released before the
// press is reported.
const DefaultDebounceMs = 100

// Debouncer must be polled every tick. It has no interrupt semantics.
type Debouncer struct {
	debounceMs uint64

	lastLow  uint64
	reported bool
}

// New returns a debouncer. A debounce of zero uses DefaultDebounceMs.
func New(debounceMs uint64) *Debouncer {
	if debounceMs == 0 {
		debounceMs = DefaultDebounceMs
	}
	// Nothing has been pressed yet, so there is nothing to report.
	return &Debouncer{debounceMs: debounceMs, reported: true}
}

// Poll takes the raw line level (false = pressed) and returns true exactly
// once per press, after the line has read released for more than the
// debounce window.
func (d *Debouncer) Poll(level bool, now uint64) bool {
	if !level {
		d.lastLow = now
		d.reported = false
		return false
	}
	if !d.reported && now-d.lastLow > d.debounceMs {
		d.reported = true
		return true
	}
	return false
}

// pending reports whether a press has been seen but not yet reported.
func (d *Debouncer) pending() bool {
	return !d.reported
}
