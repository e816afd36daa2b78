package ratelimiter

import (
	"context"
	"sync"
	"time"
)

// TokenBucketLimiter refills rate tokens per second up to capacity.
type TokenBucketLimiter struct {
	capacity int64
	rate     int64

	tokens      int64
	lastUpdate  time.Time
	nsRemainder int64 // sub-token nanoseconds carried between refills
	now         clock
	mu          sync.Mutex
}

func NewTokenBucketLimiter(rate, capacity int64) RateLimiter {
	return newTokenBucket(rate, capacity, time.Now)
}

func newTokenBucket(rate, capacity int64, now clock) *TokenBucketLimiter {
	if rate <= 0 {
		rate = 1
	}
	return &TokenBucketLimiter{
		capacity:   capacity,
		rate:       rate,
		tokens:     capacity,
		lastUpdate: now(),
		now:        now,
	}
}

func (tb *TokenBucketLimiter) Allow(ctx context.Context) bool {
	return tb.AllowN(ctx, 1)
}

func (tb *TokenBucketLimiter) AllowN(_ context.Context, n int) bool {
	if n <= 0 {
		return true
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens < int64(n) {
		return false
	}
	tb.tokens -= int64(n)
	return true
}

func (tb *TokenBucketLimiter) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastUpdate)
	if elapsed <= 0 {
		return
	}
	tb.lastUpdate = now

	nsPerToken := int64(time.Second) / tb.rate
	if nsPerToken <= 0 {
		tb.tokens = tb.capacity
		tb.nsRemainder = 0
		return
	}

	total := tb.nsRemainder + int64(elapsed)
	tb.tokens += total / nsPerToken
	tb.nsRemainder = total % nsPerToken
	if tb.tokens >= tb.capacity {
		tb.tokens = tb.capacity
		tb.nsRemainder = 0
	}
}

func (tb *TokenBucketLimiter) Name() string {
	return "token-bucket"
}
