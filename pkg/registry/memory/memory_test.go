package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ecstasoy/addrecho/pkg/codec"
	"github.com/ecstasoy/addrecho/pkg/registry"
)

func TestRegisterAndLookup(t *testing.T) {
	for _, name := range codec.List() {
		t.Run(name, func(t *testing.T) {
			r := NewRegistry(codec.Get(name))
			defer r.Close()
			ctx := context.Background()

			a := registry.NewInstance("addrecho", "tcp", "127.0.0.1", 13000)
			b := registry.NewInstance("addrecho", "udp", "127.0.0.1", 13001)
			b.RegisterTime = a.RegisterTime.Add(time.Second)
			other := registry.NewInstance("other", "tcp", "127.0.0.1", 13002)

			for _, inst := range []*registry.Instance{a, b, other} {
				if err := r.Register(ctx, inst); err != nil {
					t.Fatalf("Register: %v", err)
				}
			}

			got, err := r.GetInstances(ctx, "addrecho")
			if err != nil {
				t.Fatalf("GetInstances: %v", err)
			}
			if len(got) != 2 || got[0].ID != a.ID || got[1].ID != b.ID {
				t.Fatalf("GetInstances = %v", got)
			}
			if got[1].Endpoint() != "127.0.0.1:13001" {
				t.Fatalf("endpoint = %s", got[1].Endpoint())
			}

			if err := r.Deregister(ctx, "addrecho", a.ID); err != nil {
				t.Fatalf("Deregister: %v", err)
			}
			got, _ = r.GetInstances(ctx, "addrecho")
			if len(got) != 1 || got[0].ID != b.ID {
				t.Fatalf("after deregister = %v", got)
			}

			if err := r.Deregister(ctx, "addrecho", a.ID); !errors.Is(err, registry.ErrNotFound) {
				t.Fatalf("second Deregister err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestDownInstancesHidden(t *testing.T) {
	r := NewRegistry(nil)
	defer r.Close()
	ctx := context.Background()

	inst := registry.NewInstance("addrecho", "tcp", "127.0.0.1", 13000)
	inst.Status = registry.StatusDown
	if err := r.Register(ctx, inst); err != nil {
		t.Fatal(err)
	}
	got, err := r.GetInstances(ctx, "addrecho")
	if err != nil || len(got) != 0 {
		t.Fatalf("GetInstances = %v, %v", got, err)
	}
}

func TestHeartbeat(t *testing.T) {
	r := NewRegistry(nil)
	defer r.Close()
	ctx := context.Background()

	inst := registry.NewInstance("addrecho", "tcp", "127.0.0.1", 13000)
	inst.UpdateTime = inst.UpdateTime.Add(-time.Hour)
	before := inst.UpdateTime
	if err := r.Register(ctx, inst); err != nil {
		t.Fatal(err)
	}

	if err := r.Heartbeat(ctx, "addrecho", inst.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	got, _ := r.GetInstances(ctx, "addrecho")
	if !got[0].UpdateTime.After(before) {
		t.Fatalf("UpdateTime not refreshed: %v", got[0].UpdateTime)
	}

	if err := r.Heartbeat(ctx, "addrecho", "missing"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("Heartbeat(missing) = %v", err)
	}
}

func TestWatch(t *testing.T) {
	r := NewRegistry(nil)
	ctx := context.Background()

	w, err := r.Watch(ctx, "addrecho")
	if err != nil {
		t.Fatal(err)
	}

	inst := registry.NewInstance("addrecho", "udp", "127.0.0.1", 13000)
	_ = r.Register(ctx, inst)
	_ = r.Register(ctx, inst)
	_ = r.Deregister(ctx, "addrecho", inst.ID)

	for _, want := range []registry.EventType{registry.EventTypeAdd, registry.EventTypeUpdate, registry.EventTypeDelete} {
		ev, err := w.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if ev.Type != want || ev.Instance.ID != inst.ID {
			t.Fatalf("event = %v %v, want %v %s", ev.Type, ev.Instance, want, inst.ID)
		}
	}

	w.Stop()
	w.Stop()
	if _, err := w.Next(); !errors.Is(err, registry.ErrWatcherStopped) {
		t.Fatalf("Next after Stop = %v", err)
	}

	_ = r.Close()
	if err := r.Register(ctx, inst); !errors.Is(err, registry.ErrNotConnected) {
		t.Fatalf("Register after Close = %v", err)
	}
}

func TestWatchStopsWithContext(t *testing.T) {
	r := NewRegistry(nil)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	w, err := r.Watch(ctx, "addrecho")
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	done := make(chan error, 1)
	go func() {
		_, err := w.Next()
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, registry.ErrWatcherStopped) {
			t.Fatalf("Next = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on context cancel")
	}
}
