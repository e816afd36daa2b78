package transport

import (
	"context"
	"net"
)

// ServerTransport binds a local port and serves one exchange at a time.
type ServerTransport interface {
	Listen(ctx context.Context, addr string) error
	Serve(ctx context.Context, handler Handler) error
	Close() error
	Addr() net.Addr
}

// ClientTransport performs the client side of a single exchange.
type ClientTransport interface {
	Dial(ctx context.Context, addr string) error
	// Request sends whatever the protocol uses to trigger a reply. TCP sends nothing.
	Request(ctx context.Context) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// Handler builds the reply for the peer at addr. An error drops the exchange
// without a reply; the serve loop keeps running.
type Handler func(ctx context.Context, peer net.Addr) ([]byte, error)

type Stats struct {
	Active    int64
	Total     int64
	Replies   int64
	Dropped   int64
	Address   string
	Transport string
}
