package registry

import "testing"

func TestNewInstance(t *testing.T) {
	a := NewInstance("addrecho", "tcp", "10.0.0.5", 13000)
	b := NewInstance("addrecho", "tcp", "10.0.0.5", 13000)

	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("instance ids must be unique, got %q and %q", a.ID, b.ID)
	}
	if a.Endpoint() != "10.0.0.5:13000" {
		t.Fatalf("Endpoint() = %q", a.Endpoint())
	}
	if a.Status != StatusUp || a.Status.String() != "UP" {
		t.Fatalf("new instance should be up, got %s", a.Status)
	}
}

func TestFilter(t *testing.T) {
	up := NewInstance("s", "tcp", "10.0.0.1", 1)
	udp := NewInstance("s", "udp", "10.0.0.2", 2)
	down := NewInstance("s", "tcp", "10.0.0.3", 3)
	down.Status = StatusDown

	all := []*Instance{up, udp, down}

	if got := Filter(all, "tcp"); len(got) != 1 || got[0] != up {
		t.Fatalf("Filter(tcp) = %v", got)
	}
	if got := Filter(all, ""); len(got) != 2 {
		t.Fatalf("Filter(\"\") = %v", got)
	}
}
