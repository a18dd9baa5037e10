package core

import (
	"sync"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// MonotonicClock wraps a Clock and never reports a time earlier than one it
// has already reported. A source that steps backwards is held at its
// previous high-water mark.
type MonotonicClock struct {
	mu   sync.Mutex
	src  Clock
	last time.Time
}

// NewMonotonicClock wraps src. A nil src uses SystemClock.
func NewMonotonicClock(src Clock) *MonotonicClock {
	if src == nil {
		src = SystemClock{}
	}
	return &MonotonicClock{src: src}
}

func (c *MonotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.src.Now()
	if t.Before(c.last) {
		return c.last
	}
	c.last = t
	return t
}
