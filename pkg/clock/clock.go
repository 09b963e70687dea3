// Package clock provides the millisecond time base every component ticks on.
package clock

import (
	"sync"
	"time"
)

// Clock reports monotonic milliseconds since an arbitrary origin.
type Clock interface {
	NowMs() uint64
}

// Monotonic counts milliseconds since it was created.
type Monotonic struct {
	start time.Time
}

// NewMonotonic returns a clock whose origin is now.
func NewMonotonic() *Monotonic {
	return &Monotonic{start: time.Now()}
}

// NowMs returns elapsed milliseconds using the runtime's monotonic reading.
func (m *Monotonic) NowMs() uint64 {
	return uint64(time.Since(m.start).Milliseconds())
}

// Manual is a clock that only moves when told to. Used by tests and the
// simulator to drive the tick loop with synthetic time.
type Manual struct {
	mu  sync.Mutex
	now uint64
}

// NewManual returns a manual clock reading start.
func NewManual(start uint64) *Manual {
	return &Manual{now: start}
}

func (m *Manual) NowMs() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by ms and returns the new reading.
func (m *Manual) Advance(ms uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += ms
	return m.now
}

// Set jumps the clock to an absolute reading. Going backwards is ignored.
func (m *Manual) Set(ms uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ms > m.now {
		m.now = ms
	}
}
