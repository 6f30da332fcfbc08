// Package clock supplies the time source for the ledger.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time. Implementations never go backwards.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock at whole-second resolution and clamps it so
// that readings are non-decreasing within the process.
type System struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewSystem creates a System clock.
func NewSystem() *System {
	return &System{now: time.Now}
}

func (c *System) Now() time.Time {
	t := c.now().UTC().Truncate(time.Second)

	c.mu.Lock()
	defer c.mu.Unlock()
	if t.Before(c.last) {
		return c.last
	}
	c.last = t
	return t
}

// Manual is a Clock driven by the caller.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a Manual clock reading start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (c *Manual) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d. Negative d is ignored.
func (c *Manual) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return c.now
}

// Set moves the clock to t if t is not before the current reading.
func (c *Manual) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.now) {
		c.now = t
	}
}
