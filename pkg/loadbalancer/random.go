package loadbalancer

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/ecstasoy/addrecho/pkg/registry"
)

type Random struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandom() LoadBalancer {
	return newRandom(time.Now().UnixNano())
}

func newRandom(seed int64) *Random {
	return &Random{
		rnd: rand.New(rand.NewSource(seed)),
	}
}

func (r *Random) Pick(ctx context.Context, instances []*registry.Instance) (*registry.Instance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	r.mu.Lock()
	idx := r.rnd.Intn(len(instances))
	r.mu.Unlock()

	return instances[idx], nil
}

func (r *Random) Name() string {
	return NameRandom
}
