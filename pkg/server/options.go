package server

import (
	"time"

	"github.com/ecstasoy/addrecho/pkg/interceptor"
	"github.com/ecstasoy/addrecho/pkg/logging"
	"github.com/ecstasoy/addrecho/pkg/protocol"
	"github.com/ecstasoy/addrecho/pkg/registry"
)

type serverOptions struct {
	endpoint     protocol.Endpoint
	transport    protocol.Transport
	logger       logging.Logger
	settleDelay  time.Duration
	bufferSize   int
	interceptors []interceptor.Interceptor

	registry  registry.Registry
	service   string
	heartbeat time.Duration
}

func defaultServerOptions() *serverOptions {
	return &serverOptions{
		endpoint:    protocol.Endpoint{Host: "0.0.0.0", Port: 13000},
		transport:   protocol.TransportTCP,
		logger:      logging.Discard,
		settleDelay: 50 * time.Millisecond,
		bufferSize:  protocol.ReceiveBufferSize,
		service:     "addrecho",
	}
}

type Option func(*serverOptions)

// WithEndpoint sets the port to bind. The host only appears in logs and in
// the registry record; the server always binds the wildcard address.
func WithEndpoint(ep protocol.Endpoint) Option {
	return func(o *serverOptions) {
		o.endpoint = ep
	}
}

func WithTransport(t protocol.Transport) Option {
	return func(o *serverOptions) {
		o.transport = t
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(o *serverOptions) {
		o.logger = logging.OrDiscard(logger)
	}
}

func WithSettleDelay(d time.Duration) Option {
	return func(o *serverOptions) {
		o.settleDelay = d
	}
}

func WithBufferSize(size int) Option {
	return func(o *serverOptions) {
		o.bufferSize = size
	}
}

// WithInterceptors appends to the chain run around reply composition.
func WithInterceptors(interceptors ...interceptor.Interceptor) Option {
	return func(o *serverOptions) {
		o.interceptors = append(o.interceptors, interceptors...)
	}
}

// WithRegistry announces the server under service once it is bound.
// A non-zero heartbeat refreshes the record at that interval.
func WithRegistry(r registry.Registry, service string, heartbeat time.Duration) Option {
	return func(o *serverOptions) {
		o.registry = r
		if service != "" {
			o.service = service
		}
		o.heartbeat = heartbeat
	}
}
