package etcd

import (
	"context"
	"fmt"
	"sync"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ecstasoy/addrecho/pkg/logging"
	"github.com/ecstasoy/addrecho/pkg/registry"
)

type etcdWatcher struct {
	watchCh clientv3.WatchChan
	decode  func([]byte) (*registry.Instance, error)
	logger  logging.Logger
	pending []*registry.Event

	stopCh chan struct{}
	once   sync.Once
	cancel context.CancelFunc
}

func (ew *etcdWatcher) Next() (*registry.Event, error) {
	for {
		if len(ew.pending) > 0 {
			ev := ew.pending[0]
			ew.pending = ew.pending[1:]
			return ev, nil
		}

		select {
		case <-ew.stopCh:
			return nil, registry.ErrWatcherStopped
		case watchResp, ok := <-ew.watchCh:
			if !ok {
				return nil, registry.ErrWatcherStopped
			}
			if err := watchResp.Err(); err != nil {
				return nil, fmt.Errorf("watch: %w", err)
			}

			for _, ev := range watchResp.Events {
				if event := ew.convert(ev); event != nil {
					ew.pending = append(ew.pending, event)
				}
			}
		}
	}
}

func (ew *etcdWatcher) convert(ev *clientv3.Event) *registry.Event {
	if ev.Type == clientv3.EventTypeDelete {
		instance := &registry.Instance{}
		if ev.PrevKv != nil {
			if decoded, err := ew.decode(ev.PrevKv.Value); err == nil {
				instance = decoded
			}
		}
		return &registry.Event{Type: registry.EventTypeDelete, Instance: instance}
	}

	instance, err := ew.decode(ev.Kv.Value)
	if err != nil {
		ew.logger.Errorf("skipping watch event for %s: %v", ev.Kv.Key, err)
		return nil
	}

	eventType := registry.EventTypeUpdate
	if ev.IsCreate() {
		eventType = registry.EventTypeAdd
	}
	return &registry.Event{Type: eventType, Instance: instance}
}

func (ew *etcdWatcher) Stop() {
	ew.once.Do(func() {
		ew.cancel()
		close(ew.stopCh)
	})
}
