// Package deadline implements the shared wall-clock budget for the
// acquisition and readiness phases. A Deadline is immutable after
// construction, so concurrent pollers can read it without locking.
package deadline

import (
	"context"
	"time"
)

// Deadline is a fixed budget anchored to a monotonic clock snapshot.
type Deadline struct {
	start  time.Time
	budget time.Duration
}

// New starts a deadline with the given budget.
func New(budget time.Duration) *Deadline {
	return &Deadline{start: time.Now(), budget: budget}
}

// Elapsed returns the time spent since the deadline started.
func (d *Deadline) Elapsed() time.Duration {
	return time.Since(d.start)
}

// Remaining returns the budget left, never negative.
func (d *Deadline) Remaining() time.Duration {
	if rem := d.budget - d.Elapsed(); rem > 0 {
		return rem
	}
	return 0
}

// Expired reports whether the budget is used up.
func (d *Deadline) Expired() bool {
	return d.Elapsed() >= d.budget
}

// Budget returns the total budget.
func (d *Deadline) Budget() time.Duration {
	return d.budget
}

// Sleep waits for dur, capped at the remaining budget, and returns early
// if the context is cancelled. A loop that sleeps through Sleep can never
// oversleep its deadline.
func (d *Deadline) Sleep(ctx context.Context, dur time.Duration) {
	if rem := d.Remaining(); dur > rem {
		dur = rem
	}
	if dur <= 0 {
		return
	}
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
