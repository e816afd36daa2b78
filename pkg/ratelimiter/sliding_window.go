package ratelimiter

import (
	"context"
	"sync"
	"time"
)

// SlidingWindowLimiter admits at most limit events in any window-long span.
type SlidingWindowLimiter struct {
	limit  int64
	window time.Duration

	events []time.Time // ascending
	now    clock
	mu     sync.Mutex
}

func NewSlidingWindowLimiter(limit int64, window time.Duration) RateLimiter {
	return newSlidingWindow(limit, window, time.Now)
}

func newSlidingWindow(limit int64, window time.Duration, now clock) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		limit:  limit,
		window: window,
		now:    now,
	}
}

func (sw *SlidingWindowLimiter) Allow(ctx context.Context) bool {
	return sw.AllowN(ctx, 1)
}

func (sw *SlidingWindowLimiter) AllowN(_ context.Context, n int) bool {
	if n <= 0 {
		return true
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.evict(now)

	if int64(len(sw.events))+int64(n) > sw.limit {
		return false
	}
	for i := 0; i < n; i++ {
		sw.events = append(sw.events, now)
	}
	return true
}

// evict drops events older than the window, in place.
func (sw *SlidingWindowLimiter) evict(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for i < len(sw.events) && !sw.events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		sw.events = append(sw.events[:0], sw.events[i:]...)
	}
}

func (sw *SlidingWindowLimiter) Name() string {
	return "sliding-window"
}
