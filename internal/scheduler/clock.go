package scheduler

import (
	"sync"
	"time"

	"savepath/internal/registry"
)

// Clock turns wall-clock readings into registry frames. While paused only
// the unscaled side of each frame advances.
type Clock struct {
	mu     sync.Mutex
	last   time.Time
	paused bool
}

func NewClock(start time.Time) *Clock {
	return &Clock{last: start}
}

func (c *Clock) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

func (c *Clock) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
}

func (c *Clock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Step returns the time elapsed since the previous Step (or since start).
// Readings that go backwards count as zero.
func (c *Clock) Step(now time.Time) registry.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	delta := now.Sub(c.last)
	if delta < 0 {
		delta = 0
	}
	c.last = now
	f := registry.Frame{Unscaled: delta}
	if !c.paused {
		f.Scaled = delta
	}
	return f
}
