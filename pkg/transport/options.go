package transport

import (
	"time"

	"github.com/ecstasoy/addrecho/pkg/logging"
	"github.com/ecstasoy/addrecho/pkg/protocol"
)

// ------------------- Client Options -------------------

type ClientOptions struct {
	ReadBufferSize int
	Logger         logging.Logger
}

func DefaultClientOptions() *ClientOptions {
	return &ClientOptions{
		ReadBufferSize: protocol.ReceiveBufferSize,
		Logger:         logging.Discard,
	}
}

type ClientOption func(*ClientOptions)

func WithBufferSize(size int) ClientOption {
	return func(opts *ClientOptions) {
		opts.ReadBufferSize = size
	}
}

func WithClientLogger(logger logging.Logger) ClientOption {
	return func(opts *ClientOptions) {
		opts.Logger = logging.OrDiscard(logger)
	}
}

// ------------------- Server Options -------------------

type ServerOptions struct {
	// SettleDelay is slept between sending a TCP reply and closing the
	// connection so the peer can read before the FIN arrives.
	SettleDelay    time.Duration
	ReadBufferSize int
	Backlog        int
	// Host is only used in the readiness log line; servers always bind the wildcard address.
	Host   string
	Logger logging.Logger
}

func DefaultServerOptions() *ServerOptions {
	return &ServerOptions{
		SettleDelay:    50 * time.Millisecond,
		ReadBufferSize: protocol.ReceiveBufferSize,
		Backlog:        1,
		Logger:         logging.Discard,
	}
}

type ServerOption func(*ServerOptions)

func WithSettleDelay(d time.Duration) ServerOption {
	return func(opts *ServerOptions) {
		opts.SettleDelay = d
	}
}

func WithServerBufferSize(size int) ServerOption {
	return func(opts *ServerOptions) {
		opts.ReadBufferSize = size
	}
}

func WithBacklog(n int) ServerOption {
	return func(opts *ServerOptions) {
		opts.Backlog = n
	}
}

func WithAdvertiseHost(host string) ServerOption {
	return func(opts *ServerOptions) {
		opts.Host = host
	}
}

func WithServerLogger(logger logging.Logger) ServerOption {
	return func(opts *ServerOptions) {
		opts.Logger = logging.OrDiscard(logger)
	}
}
