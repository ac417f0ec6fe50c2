// Package rng provides the seeded random source used by behavior scripts:
// bounded sampling, percentage checks, weighted branch selection, and
// wait-duration sampling in scheduler ticks.
package rng

import (
	"math/rand"
	"time"
)

// RNG wraps math/rand.Rand. Not safe for concurrent use; the game loop owns
// one instance and all behavior sampling goes through it.
type RNG struct {
	src *rand.Rand
}

// New creates a deterministic RNG from a seed.
func New(seed int64) *RNG {
	return &RNG{src: rand.New(rand.NewSource(seed))}
}

// NewFromClock creates an RNG seeded from the wall clock.
func NewFromClock() *RNG {
	return New(time.Now().UnixNano())
}

// Intn returns a value in [0, n). n <= 0 yields 0 rather than panicking.
func (r *RNG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return r.src.Intn(n)
}

// Between returns a value in [min, max]. Inverted or equal bounds collapse
// to min.
func (r *RNG) Between(min, max int) int {
	if max <= min {
		return min
	}
	return min + r.src.Intn(max-min+1)
}

// Percent reports a hit with probability n/100. n <= 0 never hits,
// n >= 100 always hits.
func (r *RNG) Percent(n int) bool {
	if n <= 0 {
		return false
	}
	if n >= 100 {
		return true
	}
	return r.src.Intn(100) < n
}

// WeightedSelect returns an index chosen in proportion to weights.
// Non-positive weights are treated as zero; an all-zero list returns 0.
func (r *RNG) WeightedSelect(weights []int) int {
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 || len(weights) == 0 {
		return 0
	}
	roll := r.src.Intn(total)
	cumulative := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		cumulative += w
		if roll < cumulative {
			return i
		}
	}
	return len(weights) - 1
}

// WaitTicks samples a wait duration in [minMS, maxMS] milliseconds and
// converts it to scheduler ticks, always at least 1.
func (r *RNG) WaitTicks(minMS, maxMS int, tick time.Duration) int {
	ms := r.Between(minMS, maxMS)
	tickMS := int(tick / time.Millisecond)
	if tickMS <= 0 {
		tickMS = 1
	}
	ticks := ms / tickMS
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}
