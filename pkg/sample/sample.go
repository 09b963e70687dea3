// Package sample draws the next clip and the wait before it from a playlist.
package sample

import (
	"math/rand/v2"

	"github.com/hiway/murmur/pkg/playlist"
)

// Source yields uniform integers in the half-open range [low, high).
// When high <= low it returns low.
type Source interface {
	Uniform(low, high uint64) uint64
}

// PCGSource is a Source backed by a PCG generator.
type PCGSource struct {
	r *rand.Rand
}

// NewSource returns a deterministic source for the given seed.
func NewSource(seed uint64) *PCGSource {
	return &PCGSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (p *PCGSource) Uniform(low, high uint64) uint64 {
	if high <= low {
		return low
	}
	return low + p.r.Uint64N(high-low)
}

// Pick is one sampling decision.
type Pick struct {
	Index   int
	DelayMs uint64
}

// Sampler makes weighted picks. It holds no state besides its source.
type Sampler struct {
	src Source
}

// New returns a sampler drawing from src.
func New(src Source) *Sampler {
	return &Sampler{src: src}
}

// Next draws a delay in [MinDelayMs, MaxDelayMs) and then an entry index with
// probability proportional to its weight. The schedule must be valid.
func (s *Sampler) Next(sched *playlist.Schedule) Pick {
	delay := s.src.Uniform(sched.MinDelayMs, sched.MaxDelayMs)
	return Pick{Index: s.Index(sched), DelayMs: delay}
}

// Index draws r in [1, TotalWeight] and returns the first entry, in table
// order, whose cumulative weight reaches r. Zero-weight entries are never
// returned for a valid schedule.
func (s *Sampler) Index(sched *playlist.Schedule) int {
	r := s.src.Uniform(0, sched.TotalWeight) + 1
	var cum uint64
	for i, e := range sched.Entries {
		cum += e.Weight
		if cum >= r {
			return i
		}
	}
	return len(sched.Entries) - 1
}
