package cache

import (
	"context"
	"time"
)

// Sweeper is anything whose expired entries can be swept. *Store[T]
// satisfies it.
type Sweeper interface {
	Name() string
	Cleanup() int
}

// SweepFunc is called after each sweeper runs with the number of entries it
// removed.
type SweepFunc func(name string, removed int)

// Janitor periodically calls Cleanup on a set of stores. Stores never sweep
// themselves; a long-lived store should be registered with a running Janitor.
type Janitor struct {
	interval time.Duration
	sweepers []Sweeper
	onSweep  SweepFunc
}

// NewJanitor creates a janitor that sweeps every interval.
func NewJanitor(interval time.Duration, sweepers ...Sweeper) (*Janitor, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	return &Janitor{
		interval: interval,
		sweepers: sweepers,
	}, nil
}

// OnSweep registers fn to be told about every sweep. Must be called before Run.
func (j *Janitor) OnSweep(fn SweepFunc) *Janitor {
	j.onSweep = fn
	return j
}

// Interval returns the sweep interval.
func (j *Janitor) Interval() time.Duration {
	return j.interval
}

// Sweep runs Cleanup on every sweeper once and returns the total removed.
func (j *Janitor) Sweep() int {
	total := 0
	for _, s := range j.sweepers {
		removed := s.Cleanup()
		total += removed
		if j.onSweep != nil {
			j.onSweep(s.Name(), removed)
		}
	}
	return total
}

// Run sweeps every interval until ctx is done, then returns ctx.Err().
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.Sweep()
		}
	}
}
