package registry

import (
	"context"
	"errors"
)

var (
	ErrNotFound       = errors.New("service not found")
	ErrNotConnected   = errors.New("not connected to registry")
	ErrWatcherStopped = errors.New("watcher has been stopped")
)

// Registry is where running servers announce themselves.
type Registry interface {
	Register(ctx context.Context, instance *Instance) error
	Deregister(ctx context.Context, service, instanceID string) error
	Heartbeat(ctx context.Context, service, instanceID string) error
	Close() error
}

// Discovery is how clients find a server by service name instead of host and port.
type Discovery interface {
	GetInstances(ctx context.Context, service string) ([]*Instance, error)
	Watch(ctx context.Context, service string) (Watcher, error)
	Close() error
}

type RegistryDiscovery interface {
	Registry
	Discovery
}
