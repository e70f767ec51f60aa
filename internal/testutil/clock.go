// Package testutil holds helpers shared by tests across packages.
package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a thread-safe test clock: every Now() call
// returns the base time advanced by one fixed step, so timestamps in
// persisted rows and golden files are stable across runs.
type DeterministicClock struct {
	mu   sync.Mutex
	base time.Time
	step time.Duration
	n    int64
}

// NewDeterministicClock creates a clock starting at base and advancing by
// step per Now() call. The first call returns base.
func NewDeterministicClock(base time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{base: base, step: step}
}

// Now returns the next timestamp in the sequence.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.base.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

// Current returns the timestamp the next Now() call will produce.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.Add(time.Duration(c.n) * c.step)
}

// Reset rewinds the clock to its base time.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
