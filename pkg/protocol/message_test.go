package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

func TestFormatPeer(t *testing.T) {
	tests := []struct {
		addr net.Addr
		want string
	}{
		{&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 54321}, "127.0.0.1:54321"},
		{&net.UDPAddr{IP: net.IPv4(192, 168, 1, 2), Port: 13000}, "192.168.1.2:13000"},
		{&net.TCPAddr{IP: net.IPv6loopback, Port: 80}, "::1:80"},
		{nil, ""},
	}

	for _, tt := range tests {
		if got := FormatPeer(tt.addr); got != tt.want {
			t.Errorf("FormatPeer(%v) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestParseTransport(t *testing.T) {
	if tr, err := ParseTransport(""); err != nil || tr != TransportTCP {
		t.Fatalf("empty transport: %v %v", tr, err)
	}
	if tr, err := ParseTransport("UDP"); err != nil || tr != TransportUDP {
		t.Fatalf("UDP transport: %v %v", tr, err)
	}
	if _, err := ParseTransport("sctp"); err == nil {
		t.Fatal("expected error for sctp")
	}
	if TransportUDP.String() != "udp" || RoleClient.String() != "client" {
		t.Fatal("unexpected String() output")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ErrorKindNone},
		{"validation", fmt.Errorf("wrap: %w", ErrInvalidHost), ErrorKindValidation},
		{"canceled", fmt.Errorf("serve: %w", context.Canceled), ErrorKindCanceled},
		{"deadline", context.DeadlineExceeded, ErrorKindTimeout},
		{"listen op", &net.OpError{Op: "listen", Net: "tcp", Err: errors.New("boom")}, ErrorKindBind},
		{"dial op", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("boom")}, ErrorKindConnect},
		{"addr in use", fmt.Errorf("bind: %w", syscall.EADDRINUSE), ErrorKindBind},
		{"refused", fmt.Errorf("read: %w", syscall.ECONNREFUSED), ErrorKindConnect},
		{"other", errors.New("broken pipe"), ErrorKindIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}
