// Package memory keeps registry records inside the process. It backs tests
// and single-host setups where server and lookup share one process.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ecstasoy/addrecho/pkg/codec"
	"github.com/ecstasoy/addrecho/pkg/registry"
)

// Registry stores each instance encoded with its codec, the same bytes the
// etcd backend would write.
type Registry struct {
	codec    codec.Codec
	records  map[string]map[string][]byte // service -> id -> record
	watchers map[string][]*memoryWatcher
	closed   bool
	mu       sync.RWMutex
}

var _ registry.RegistryDiscovery = (*Registry)(nil)

func NewRegistry(c codec.Codec) *Registry {
	if c == nil {
		c = codec.GetOrDefault(codec.NameJSON)
	}
	return &Registry{
		codec:    c,
		records:  make(map[string]map[string][]byte),
		watchers: make(map[string][]*memoryWatcher),
	}
}

func (r *Registry) Register(ctx context.Context, instance *registry.Instance) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return registry.ErrNotConnected
	}

	records := r.records[instance.Service]
	if records == nil {
		records = make(map[string][]byte)
		r.records[instance.Service] = records
	}

	eventType := registry.EventTypeAdd
	if _, exists := records[instance.ID]; exists {
		eventType = registry.EventTypeUpdate
		instance.UpdateTime = time.Now()
	}

	data, err := r.codec.Encode(instance)
	if err != nil {
		return fmt.Errorf("encode instance %s: %w", instance.ID, err)
	}
	records[instance.ID] = data

	r.notify(instance.Service, eventType, data)
	return nil
}

func (r *Registry) Deregister(ctx context.Context, service, instanceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, exists := r.records[service][instanceID]
	if !exists {
		return registry.ErrNotFound
	}

	delete(r.records[service], instanceID)
	if len(r.records[service]) == 0 {
		delete(r.records, service)
	}

	r.notify(service, registry.EventTypeDelete, data)
	return nil
}

func (r *Registry) Heartbeat(ctx context.Context, service, instanceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, exists := r.records[service][instanceID]
	if !exists {
		return registry.ErrNotFound
	}

	var instance registry.Instance
	if err := r.codec.Decode(data, &instance); err != nil {
		return fmt.Errorf("decode instance %s: %w", instanceID, err)
	}
	instance.UpdateTime = time.Now()

	data, err := r.codec.Encode(&instance)
	if err != nil {
		return fmt.Errorf("encode instance %s: %w", instanceID, err)
	}
	r.records[service][instanceID] = data
	return nil
}

// GetInstances returns the instances of service that are up, oldest first.
func (r *Registry) GetInstances(ctx context.Context, service string) ([]*registry.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*registry.Instance
	for id, data := range r.records[service] {
		var instance registry.Instance
		if err := r.codec.Decode(data, &instance); err != nil {
			return nil, fmt.Errorf("decode instance %s: %w", id, err)
		}
		if instance.Status == registry.StatusUp {
			result = append(result, &instance)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].RegisterTime.Equal(result[j].RegisterTime) {
			return result[i].ID < result[j].ID
		}
		return result[i].RegisterTime.Before(result[j].RegisterTime)
	})

	return result, nil
}

func (r *Registry) Watch(ctx context.Context, service string) (registry.Watcher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, registry.ErrNotConnected
	}

	w := &memoryWatcher{
		codec:  r.codec,
		ch:     make(chan rawEvent, 16),
		stopCh: make(chan struct{}),
	}
	r.watchers[service] = append(r.watchers[service], w)

	context.AfterFunc(ctx, w.Stop)
	return w, nil
}

// notify must be called with r.mu held. Slow watchers miss events.
func (r *Registry) notify(service string, eventType registry.EventType, data []byte) {
	for _, w := range r.watchers[service] {
		select {
		case w.ch <- rawEvent{eventType: eventType, data: data}:
		default:
		}
	}
}

func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	for _, watchers := range r.watchers {
		for _, w := range watchers {
			close(w.ch)
		}
	}
	r.watchers = nil

	return nil
}

type rawEvent struct {
	eventType registry.EventType
	data      []byte
}

type memoryWatcher struct {
	codec  codec.Codec
	ch     chan rawEvent
	once   sync.Once
	stopCh chan struct{}
}

func (w *memoryWatcher) Next() (*registry.Event, error) {
	select {
	case <-w.stopCh:
		return nil, registry.ErrWatcherStopped
	case ev, ok := <-w.ch:
		if !ok {
			return nil, registry.ErrWatcherStopped
		}
		var instance registry.Instance
		if err := w.codec.Decode(ev.data, &instance); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		return &registry.Event{Type: ev.eventType, Instance: &instance}, nil
	}
}

func (w *memoryWatcher) Stop() {
	w.once.Do(func() { close(w.stopCh) })
}
