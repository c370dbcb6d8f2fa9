package scheduler

import (
	"context"
	"time"

	"savepath/internal/registry"
)

const DefaultPeriod = 100 * time.Millisecond

// Target is what a Loop drives; *registry.Registry satisfies it.
type Target interface {
	TickFrame(registry.Frame) (string, error)
}

// Loop ticks Target once per Period from a single goroutine, the one calling
// Run.
type Loop struct {
	Target Target
	Clock  *Clock
	Period time.Duration
	// OnFire is called with every path the target requested.
	OnFire func(path string)
	// OnError receives tick failures; the loop keeps running.
	OnError func(error)
}

// Run blocks until ctx is done and returns ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	period := l.Period
	if period <= 0 {
		period = DefaultPeriod
	}
	if l.Clock == nil {
		l.Clock = NewClock(time.Now())
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			path, err := l.Target.TickFrame(l.Clock.Step(now))
			if err != nil {
				if l.OnError != nil {
					l.OnError(err)
				}
				continue
			}
			if path != "" && l.OnFire != nil {
				l.OnFire(path)
			}
		}
	}
}
