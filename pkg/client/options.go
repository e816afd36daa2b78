package client

import (
	"time"

	"github.com/ecstasoy/addrecho/pkg/interceptor"
	"github.com/ecstasoy/addrecho/pkg/loadbalancer"
	"github.com/ecstasoy/addrecho/pkg/logging"
	"github.com/ecstasoy/addrecho/pkg/protocol"
	"github.com/ecstasoy/addrecho/pkg/registry"
)

type clientOptions struct {
	endpoint     protocol.Endpoint
	transport    protocol.Transport
	logger       logging.Logger
	timeout      time.Duration
	bufferSize   int
	interceptors []interceptor.Interceptor

	discovery    registry.Discovery
	service      string
	loadBalancer loadbalancer.LoadBalancer
}

func defaultOptions() *clientOptions {
	return &clientOptions{
		transport:    protocol.TransportTCP,
		logger:       logging.Discard,
		bufferSize:   protocol.ReceiveBufferSize,
		loadBalancer: loadbalancer.NewRoundRobin(),
	}
}

type Option func(*clientOptions)

func WithEndpoint(ep protocol.Endpoint) Option {
	return func(o *clientOptions) {
		o.endpoint = ep
	}
}

func WithTransport(t protocol.Transport) Option {
	return func(o *clientOptions) {
		o.transport = t
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logging.OrDiscard(logger)
	}
}

// WithTimeout bounds a whole exchange. Zero waits for the reply forever.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = timeout
	}
}

func WithBufferSize(size int) Option {
	return func(o *clientOptions) {
		o.bufferSize = size
	}
}

func WithInterceptors(interceptors ...interceptor.Interceptor) Option {
	return func(o *clientOptions) {
		o.interceptors = append(o.interceptors, interceptors...)
	}
}

// WithDiscovery makes the client look service up instead of using the endpoint.
func WithDiscovery(discovery registry.Discovery, service string) Option {
	return func(o *clientOptions) {
		o.discovery = discovery
		o.service = service
	}
}

func WithLoadBalancer(lb loadbalancer.LoadBalancer) Option {
	return func(o *clientOptions) {
		o.loadBalancer = lb
	}
}
