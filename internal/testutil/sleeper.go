package testutil

import (
	"context"
	"sync"
	"time"
)

// Sleeper records requested sleeps and returns immediately.
type Sleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

// Sleep records d. It fails only when ctx is already done.
func (s *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.sleeps = append(s.sleeps, d)
	s.mu.Unlock()
	return ctx.Err()
}

// Sleeps returns the recorded durations in call order.
func (s *Sleeper) Sleeps() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.sleeps...)
}

// Count returns how many sleeps of exactly d were recorded.
func (s *Sleeper) Count(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, got := range s.sleeps {
		if got == d {
			n++
		}
	}
	return n
}
