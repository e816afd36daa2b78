package loadbalancer

import (
	"context"
	"sync/atomic"

	"github.com/ecstasoy/addrecho/pkg/registry"
)

type RoundRobinBalancer struct {
	index uint64
}

func NewRoundRobin() LoadBalancer {
	return &RoundRobinBalancer{}
}

func (rb *RoundRobinBalancer) Pick(ctx context.Context, instances []*registry.Instance) (*registry.Instance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	idx := (atomic.AddUint64(&rb.index, 1) - 1) % uint64(len(instances))
	return instances[idx], nil
}

func (rb *RoundRobinBalancer) Name() string {
	return NameRoundRobin
}
