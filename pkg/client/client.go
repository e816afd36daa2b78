package client

import (
	"context"
	"fmt"

	"github.com/ecstasoy/addrecho/pkg/interceptor"
	"github.com/ecstasoy/addrecho/pkg/logging"
	"github.com/ecstasoy/addrecho/pkg/protocol"
	"github.com/ecstasoy/addrecho/pkg/registry"
	"github.com/ecstasoy/addrecho/pkg/transport"
	"github.com/ecstasoy/addrecho/pkg/transport/tcp"
	"github.com/ecstasoy/addrecho/pkg/transport/udp"
)

// Client asks a server which address it sees us at. Every Call opens a
// fresh socket and closes it after one reply.
type Client struct {
	opts   *clientOptions
	logger logging.Logger
	chain  *interceptor.Chain
}

func NewClient(opts ...Option) (*Client, error) {
	options := defaultOptions()
	for _, o := range opts {
		o(options)
	}

	if options.discovery != nil {
		if options.service == "" {
			return nil, fmt.Errorf("service name is required with discovery")
		}
		if options.loadBalancer == nil {
			return nil, fmt.Errorf("load balancer is required with discovery")
		}
	}

	interceptors := append([]interceptor.Interceptor{interceptor.Recovery()}, options.interceptors...)

	return &Client{
		opts:   options,
		logger: options.logger,
		chain:  interceptor.NewChain(interceptors...),
	}, nil
}

// Call performs one exchange and returns the reply text, which is empty if
// the server closed without sending anything.
func (c *Client) Call(ctx context.Context) (string, error) {
	if c.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.timeout)
		defer cancel()
	}

	address, err := c.resolve(ctx)
	if err != nil {
		return "", err
	}

	ex := &protocol.Exchange{
		Role:      protocol.RoleClient,
		Transport: c.opts.transport,
	}

	reply, err := c.chain.Intercept(ctx, ex, func(ctx context.Context, ex *protocol.Exchange) ([]byte, error) {
		return c.exchange(ctx, ex, address)
	})
	if err != nil {
		return "", err
	}

	return string(reply), nil
}

func (c *Client) exchange(ctx context.Context, ex *protocol.Exchange, address string) ([]byte, error) {
	ct := c.newTransport(address)

	if err := ct.Dial(ctx, address); err != nil {
		return nil, err
	}
	defer func() {
		if err := ct.Close(); err != nil {
			c.logger.Errorf("close %s socket: %v", ex.Transport, err)
		}
	}()
	ex.Peer = ct.RemoteAddr()

	if err := ct.Request(ctx); err != nil {
		return nil, err
	}

	reply, err := ct.Receive(ctx)
	if err != nil {
		return nil, err
	}

	c.logger.Infof("The client received a message \"%s\" from the server (%s).", reply, protocol.FormatPeer(ex.Peer))
	return reply, nil
}

func (c *Client) newTransport(address string) transport.ClientTransport {
	opts := []transport.ClientOption{
		transport.WithBufferSize(c.opts.bufferSize),
		transport.WithClientLogger(c.logger),
	}

	if c.opts.transport == protocol.TransportUDP {
		return udp.NewClient(address, opts...)
	}
	return tcp.NewClient(address, opts...)
}

func (c *Client) resolve(ctx context.Context) (string, error) {
	if c.opts.discovery == nil {
		return c.opts.endpoint.String(), nil
	}

	instances, err := c.opts.discovery.GetInstances(ctx, c.opts.service)
	if err != nil {
		return "", fmt.Errorf("discover %s: %w", c.opts.service, err)
	}

	instances = registry.Filter(instances, c.opts.transport.String())
	if len(instances) == 0 {
		return "", fmt.Errorf("%w: %s/%s", registry.ErrNotFound, c.opts.service, c.opts.transport)
	}

	inst, err := c.opts.loadBalancer.Pick(ctx, instances)
	if err != nil {
		return "", fmt.Errorf("pick instance of %s: %w", c.opts.service, err)
	}

	c.logger.Infof("Resolved %s to %s.", c.opts.service, inst.Endpoint())
	return inst.Endpoint(), nil
}
