// Package gpio reads and drives digital lines by number.
package gpio

import (
	"sync"
)

// Pins is digital I/O by line number. Levels are true for high.
type Pins interface {
	Read(id int) bool
	Write(id int, level bool)
}

// Memory keeps line levels in memory. Lines that were never set read high,
// like an input with a pull-up.
type Memory struct {
	mu     sync.Mutex
	levels map[int]bool
	writes map[int][]bool
}

// NewMemory returns an empty set of lines.
func NewMemory() *Memory {
	return &Memory{
		levels: make(map[int]bool),
		writes: make(map[int][]bool),
	}
}

func (m *Memory) Read(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	level, ok := m.levels[id]
	return !ok || level
}

func (m *Memory) Write(id int, level bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[id] = level
	m.writes[id] = append(m.writes[id], level)
}

// Set drives an input line from outside, e.g. a test pressing a button.
func (m *Memory) Set(id int, level bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[id] = level
}

// Writes returns every level written to id, in order.
func (m *Memory) Writes(id int) []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bool(nil), m.writes[id]...)
}

var _ Pins = (*Memory)(nil)
