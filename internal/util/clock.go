package util

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

// RealClock reads time.Now, which carries a monotonic reading, so
// durations derived from it are immune to wall clock steps.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// ManualClock only moves when Advance is called.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
