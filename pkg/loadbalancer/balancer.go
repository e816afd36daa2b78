package loadbalancer

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecstasoy/addrecho/pkg/registry"
)

var (
	ErrNoInstances      = errors.New("no available instances")
	ErrInvalidAlgorithm = errors.New("invalid algorithm")
)

const (
	NameRoundRobin = "round-robin"
	NameRandom     = "random"
)

// LoadBalancer picks the server a client talks to when it looks a service
// up instead of naming host and port.
type LoadBalancer interface {
	Pick(ctx context.Context, instances []*registry.Instance) (*registry.Instance, error)
	Name() string
}

func New(name string) (LoadBalancer, error) {
	switch name {
	case "", NameRoundRobin:
		return NewRoundRobin(), nil
	case NameRandom:
		return NewRandom(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAlgorithm, name)
	}
}
