package ratelimiter

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrRateLimitExceeded = errors.New("rate limit exceeded")

type RateLimiter interface {
	Allow(ctx context.Context) bool
	AllowN(ctx context.Context, n int) bool
	Name() string
}

type clock func() time.Time

// Keyed hands out one limiter per key, typically the peer IP, so a single
// noisy client cannot use up the budget of the others.
type Keyed struct {
	factory  func() RateLimiter
	limiters map[string]RateLimiter
	maxKeys  int
	mu       sync.Mutex
}

// NewKeyed builds limiters lazily with factory. When maxKeys distinct keys
// are tracked the table is reset.
func NewKeyed(factory func() RateLimiter, maxKeys int) *Keyed {
	if maxKeys <= 0 {
		maxKeys = 4096
	}
	return &Keyed{
		factory:  factory,
		limiters: make(map[string]RateLimiter),
		maxKeys:  maxKeys,
	}
}

func (k *Keyed) Allow(ctx context.Context, key string) bool {
	return k.get(key).Allow(ctx)
}

func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}

func (k *Keyed) get(key string) RateLimiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	if l, ok := k.limiters[key]; ok {
		return l
	}
	if len(k.limiters) >= k.maxKeys {
		k.limiters = make(map[string]RateLimiter)
	}
	l := k.factory()
	k.limiters[key] = l
	return l
}
