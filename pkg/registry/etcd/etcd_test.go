package etcd

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ecstasoy/addrecho/pkg/codec"
	"github.com/ecstasoy/addrecho/pkg/logging"
	"github.com/ecstasoy/addrecho/pkg/registry"
)

func TestConfigDefaults(t *testing.T) {
	cfg := (&Config{KeyPrefix: "/lab/"}).withDefaults()

	if cfg.KeyPrefix != "/lab" {
		t.Fatalf("KeyPrefix = %q", cfg.KeyPrefix)
	}
	if len(cfg.Endpoints) != 1 || cfg.Endpoints[0] != "localhost:2379" {
		t.Fatalf("Endpoints = %v", cfg.Endpoints)
	}
	if cfg.DialTimeout != 5*time.Second || cfg.LeaseTTL != 10 {
		t.Fatalf("DialTimeout/LeaseTTL = %v/%d", cfg.DialTimeout, cfg.LeaseTTL)
	}
	if cfg.Codec.Name() != codec.NameJSON || cfg.Logger == nil {
		t.Fatalf("codec/logger not defaulted")
	}

	if got := (*Config)(nil).withDefaults().KeyPrefix; got != "/addrecho/services" {
		t.Fatalf("nil config prefix = %q", got)
	}
}

func TestKeys(t *testing.T) {
	if got := serviceKey("/addrecho/services", "echo", "abc"); got != "/addrecho/services/echo/abc" {
		t.Fatalf("serviceKey = %q", got)
	}
	if got := servicePrefix("/addrecho/services", "echo"); got != "/addrecho/services/echo/" {
		t.Fatalf("servicePrefix = %q", got)
	}
}

func newTestWatcher(ch clientv3.WatchChan) *etcdWatcher {
	c := codec.GetOrDefault(codec.NameProtobuf)
	return &etcdWatcher{
		watchCh: ch,
		decode: func(b []byte) (*registry.Instance, error) {
			var inst registry.Instance
			if err := c.Decode(b, &inst); err != nil {
				return nil, err
			}
			return &inst, nil
		},
		logger: logging.Discard,
		stopCh: make(chan struct{}),
		cancel: func() {},
	}
}

func TestWatcherConvertsBatch(t *testing.T) {
	c := codec.GetOrDefault(codec.NameProtobuf)
	inst := registry.NewInstance("echo", "tcp", "10.0.0.1", 13000)
	value, err := c.Encode(inst)
	if err != nil {
		t.Fatal(err)
	}

	ch := make(chan clientv3.WatchResponse, 1)
	ch <- clientv3.WatchResponse{Events: []*clientv3.Event{
		{Type: mvccpb.PUT, Kv: &mvccpb.KeyValue{Key: []byte("k"), Value: value, CreateRevision: 5, ModRevision: 5}},
		{Type: mvccpb.PUT, Kv: &mvccpb.KeyValue{Key: []byte("bad"), Value: []byte("junk"), CreateRevision: 6, ModRevision: 6}},
		{Type: mvccpb.PUT, Kv: &mvccpb.KeyValue{Key: []byte("k"), Value: value, CreateRevision: 5, ModRevision: 7}},
		{Type: mvccpb.DELETE, Kv: &mvccpb.KeyValue{Key: []byte("k")}, PrevKv: &mvccpb.KeyValue{Key: []byte("k"), Value: value}},
	}}
	close(ch)

	w := newTestWatcher(ch)
	for _, want := range []registry.EventType{registry.EventTypeAdd, registry.EventTypeUpdate, registry.EventTypeDelete} {
		ev, err := w.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if ev.Type != want || ev.Instance.ID != inst.ID {
			t.Fatalf("event = %v %s, want %v %s", ev.Type, ev.Instance.ID, want, inst.ID)
		}
	}

	if _, err := w.Next(); !errors.Is(err, registry.ErrWatcherStopped) {
		t.Fatalf("Next on closed channel = %v", err)
	}
}

func TestWatcherStop(t *testing.T) {
	cancelled := false
	w := newTestWatcher(make(chan clientv3.WatchResponse))
	w.cancel = func() { cancelled = true }

	w.Stop()
	w.Stop()

	if !cancelled {
		t.Fatal("Stop did not cancel the watch context")
	}
	if _, err := w.Next(); !errors.Is(err, registry.ErrWatcherStopped) {
		t.Fatalf("Next after Stop = %v", err)
	}
}

// unreachableConfig points at a port nothing listens on.
func unreachableConfig() *Config {
	return &Config{Endpoints: []string{"127.0.0.1:1"}, DialTimeout: 200 * time.Millisecond}
}

func TestUnreachableEtcdRegistryFails(t *testing.T) {
	if testing.Short() {
		t.Skip("dials a closed port")
	}

	done := make(chan error, 1)
	go func() {
		reg, err := NewEtcdRegistry(context.Background(), unreachableConfig())
		if err == nil {
			_ = reg.Close()
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error when etcd is unreachable")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("NewEtcdRegistry blocked past its dial timeout")
	}
}

func TestUnreachableEtcdDiscoveryFails(t *testing.T) {
	if testing.Short() {
		t.Skip("dials a closed port")
	}

	done := make(chan error, 1)
	go func() {
		d, err := NewEtcdDiscovery(unreachableConfig())
		if err != nil {
			done <- err
			return
		}
		defer d.Close()
		_, err = d.GetInstances(context.Background(), "echo")
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error when etcd is unreachable")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("GetInstances blocked past its dial timeout")
	}
}
