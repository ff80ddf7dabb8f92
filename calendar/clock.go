package calendar

import (
	"sync"
	"time"
)

// Clock is the source of "now". Nothing in the core reads time.Now directly.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant until Set is called.
type FixedClock struct {
	mu sync.RWMutex
	at time.Time
}

func NewFixedClock(at time.Time) *FixedClock { return &FixedClock{at: at} }

// FixedOn returns a clock pinned to noon of d in UTC.
func FixedOn(d Date) *FixedClock {
	return NewFixedClock(d.Time().Add(12 * time.Hour))
}

func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.at
}

func (c *FixedClock) Set(at time.Time) {
	c.mu.Lock()
	c.at = at
	c.mu.Unlock()
}

// Today is the current calendar day in loc.
func Today(c Clock, loc *time.Location) Date {
	return FromTime(c.Now(), loc)
}
