package clock

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clocks holds the two clocks every timing decision is made against. Cpu is
// used for delays and durations, System for comparisons against timestamps
// coming from chat entries.
type Clocks struct {
	Cpu    clockwork.Clock
	System clockwork.Clock
}

func NewClocks() Clocks {
	return Clocks{
		Cpu:    clockwork.NewRealClock(),
		System: clockwork.NewRealClock(),
	}
}

// NewFakeClocks returns Clocks where both clocks are the same fake.
func NewFakeClocks(at time.Time) (Clocks, *clockwork.FakeClock) {
	fc := clockwork.NewFakeClockAt(at)
	return Clocks{Cpu: fc, System: fc}, fc
}

func (this Clocks) OrDefault() Clocks {
	if this.Cpu == nil {
		this.Cpu = clockwork.NewRealClock()
	}
	if this.System == nil {
		this.System = clockwork.NewRealClock()
	}
	return this
}

// Sleep waits for the given duration on the given clock or until ctx is done.
func Sleep(ctx context.Context, c clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := c.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Chan():
		return nil
	}
}

// SleepUntil waits until the clock reaches at.
func SleepUntil(ctx context.Context, c clockwork.Clock, at time.Time) error {
	return Sleep(ctx, c, at.Sub(c.Now()))
}

func Max(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func Min(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func Positive(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
