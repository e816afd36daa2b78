package etcd

import (
	"context"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ecstasoy/addrecho/pkg/registry"
)

type EtcdDiscovery struct {
	*EtcdClient
}

var _ registry.Discovery = (*EtcdDiscovery)(nil)

func NewEtcdDiscovery(config *Config) (*EtcdDiscovery, error) {
	client, err := NewEtcdClient(config)
	if err != nil {
		return nil, err
	}

	return &EtcdDiscovery{
		EtcdClient: client,
	}, nil
}

func (ed *EtcdDiscovery) GetInstances(ctx context.Context, service string) ([]*registry.Instance, error) {
	prefix := ed.servicePrefix(service)

	ctx, cancel := ed.callContext(ctx)
	defer cancel()

	resp, err := ed.client.Get(ctx, prefix, clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByCreateRevision, clientv3.SortAscend))
	if err != nil {
		return nil, fmt.Errorf("get instances: %w", err)
	}

	var instances []*registry.Instance
	for _, kv := range resp.Kvs {
		instance, err := ed.decode(kv.Value)
		if err != nil {
			ed.config.Logger.Errorf("skipping %s: %v", kv.Key, err)
			continue
		}
		if instance.Status == registry.StatusUp {
			instances = append(instances, instance)
		}
	}

	return instances, nil
}

func (ed *EtcdDiscovery) Watch(ctx context.Context, service string) (registry.Watcher, error) {
	prefix := ed.servicePrefix(service)
	ctx, cancel := context.WithCancel(ctx)
	watchCh := ed.client.Watch(ctx, prefix, clientv3.WithPrefix(), clientv3.WithPrevKV())

	return &etcdWatcher{
		watchCh: watchCh,
		decode:  ed.decode,
		logger:  ed.config.Logger,
		stopCh:  make(chan struct{}),
		cancel:  cancel,
	}, nil
}

func (ed *EtcdDiscovery) decode(data []byte) (*registry.Instance, error) {
	var instance registry.Instance
	if err := ed.config.Codec.Decode(data, &instance); err != nil {
		return nil, fmt.Errorf("decode instance: %w", err)
	}
	return &instance, nil
}
