package util

import (
	"context"
	"fmt"
	"time"
)

// Backoff bounds a retry loop: at most Attempts calls, Delay between them.
// With DelayFirst the loop also waits before the first call, which is how a
// retry of an operation that already failed once is expressed.
type Backoff struct {
	Attempts   int
	Delay      time.Duration
	DelayFirst bool
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry calls fn until it reports done, returns an error, or the attempt budget
// is spent. fn returning an error aborts immediately; that error is returned as is.
// The number of calls made is always returned. Exhaustion yields ErrRetriesExhausted.
func Retry(ctx context.Context, b Backoff, sleep SleepFunc, fn func(ctx context.Context, attempt int) (bool, error)) (int, error) {
	if sleep == nil {
		sleep = Sleep
	}
	for attempt := 1; attempt <= b.Attempts; attempt++ {
		if attempt > 1 || b.DelayFirst {
			if err := sleep(ctx, b.Delay); err != nil {
				return attempt - 1, err
			}
		}
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}
		done, err := fn(ctx, attempt)
		if err != nil {
			return attempt, err
		}
		if done {
			return attempt, nil
		}
	}
	return b.Attempts, fmt.Errorf("%w after %d attempts", ErrRetriesExhausted, b.Attempts)
}
