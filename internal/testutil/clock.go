package testutil

import "sync"

// DeterministicClock is a thread-safe epoch-millisecond clock for tests.
//
// Every NowMillis call advances the clock by Step, so consecutive
// mutations get distinct, predictable timestamps.
type DeterministicClock struct {
	mu    sync.Mutex
	start int64
	step  int64
	now   int64
}

// NewDeterministicClock creates a clock whose first reading is start+step.
// A step of 0 freezes the clock at start.
func NewDeterministicClock(start, step int64) *DeterministicClock {
	return &DeterministicClock{start: start, step: step, now: start}
}

// NowMillis advances the clock and returns the new reading.
func (c *DeterministicClock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += c.step
	return c.now
}

// Current returns the last reading without advancing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset rewinds the clock to its start value.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
