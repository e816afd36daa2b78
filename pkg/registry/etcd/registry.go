package etcd

import (
	"context"
	"fmt"
	"sync"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ecstasoy/addrecho/pkg/registry"
)

// EtcdRegistry puts every instance under one lease. The lease is not kept
// alive in the background: the owner calls Heartbeat more often than
// LeaseTTL, and a server that stops calling it drops out of lookups.
type EtcdRegistry struct {
	*EtcdClient
	leaseID clientv3.LeaseID

	closeOnce sync.Once
}

var _ registry.Registry = (*EtcdRegistry)(nil)

func NewEtcdRegistry(ctx context.Context, config *Config) (*EtcdRegistry, error) {
	client, err := NewEtcdClient(config)
	if err != nil {
		return nil, err
	}

	er := &EtcdRegistry{
		EtcdClient: client,
	}

	if err := er.createLease(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("create lease: %w", err)
	}

	return er, nil
}

func (er *EtcdRegistry) createLease(ctx context.Context) error {
	ctx, cancel := er.callContext(ctx)
	defer cancel()

	grant, err := er.client.Grant(ctx, er.config.LeaseTTL)
	if err != nil {
		return fmt.Errorf("grant lease: %w", err)
	}

	er.leaseID = grant.ID
	return nil
}

func (er *EtcdRegistry) Register(ctx context.Context, instance *registry.Instance) error {
	key := er.serviceKey(instance.Service, instance.ID)

	value, err := er.config.Codec.Encode(instance)
	if err != nil {
		return fmt.Errorf("encode instance: %w", err)
	}

	ctx, cancel := er.callContext(ctx)
	defer cancel()

	if _, err := er.client.Put(ctx, key, string(value), clientv3.WithLease(er.leaseID)); err != nil {
		return fmt.Errorf("put to etcd: %w", err)
	}

	er.config.Logger.Infof("Registered %s at %s.", instance, key)
	return nil
}

func (er *EtcdRegistry) Deregister(ctx context.Context, service, instanceID string) error {
	key := er.serviceKey(service, instanceID)

	ctx, cancel := er.callContext(ctx)
	defer cancel()

	resp, err := er.client.Delete(ctx, key)
	if err != nil {
		return fmt.Errorf("delete instance %s from etcd: %w", instanceID, err)
	}
	if resp.Deleted == 0 {
		return registry.ErrNotFound
	}

	return nil
}

// Heartbeat renews the lease shared by every instance this registry put.
func (er *EtcdRegistry) Heartbeat(ctx context.Context, service, instanceID string) error {
	ctx, cancel := er.callContext(ctx)
	defer cancel()

	if _, err := er.client.KeepAliveOnce(ctx, er.leaseID); err != nil {
		return fmt.Errorf("keepalive once: %w", err)
	}
	return nil
}

func (er *EtcdRegistry) Close() error {
	er.closeOnce.Do(func() {
		if er.leaseID != 0 {
			ctx, cancel := er.callContext(context.Background())
			_, _ = er.client.Revoke(ctx, er.leaseID)
			cancel()
		}
	})

	return er.EtcdClient.Close()
}
