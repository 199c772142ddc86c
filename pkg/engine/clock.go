package engine

import (
	"context"
	"time"
)

// Clock supplies the current time so cycle scheduling and session
// checks are testable without waiting on the wall clock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// Sleeper pauses between cycles. It returns false when the context was
// cancelled before the pause elapsed. Tests inject an instant version.
type Sleeper func(ctx context.Context, d time.Duration) bool

// DefaultSleeper waits on a timer or context cancellation.
func DefaultSleeper(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
