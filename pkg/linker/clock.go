package linker

import (
	"sync"
	"time"
)

// Clock supplies journal timestamps. Implementations must be non-decreasing.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

type monotonicClock struct {
	mu    sync.Mutex
	inner Clock
	last  time.Time
}

// NewMonotonicClock wraps inner so that observed times never go backward.
// A reading earlier than the previous one is clamped to the previous one.
func NewMonotonicClock(inner Clock) Clock {
	return &monotonicClock{inner: inner}
}

func (c *monotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.inner.Now()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}
