package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ecstasoy/addrecho/pkg/logging"
	"github.com/ecstasoy/addrecho/pkg/transport"
)

type Client struct {
	address   string
	opts      *transport.ClientOptions
	logger    logging.Logger
	conn      net.Conn
	connected bool
	mu        sync.RWMutex // protects connected and conn
}

var _ transport.ClientTransport = (*Client)(nil)

func NewClient(address string, options ...transport.ClientOption) *Client {
	opts := transport.DefaultClientOptions()

	for _, o := range options {
		o(opts)
	}

	return &Client{
		address: address,
		opts:    opts,
		logger:  logging.OrDiscard(opts.Logger),
	}
}

func (c *Client) Dial(ctx context.Context, address string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return fmt.Errorf("already connected to: %s", c.conn.RemoteAddr().String())
	}

	addr := address
	if addr == "" {
		addr = c.address
	}

	c.logger.Infof("The client TCP socket was created.")

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial tcp %s failed: %w", addr, err)
	}

	c.conn = conn
	c.connected = true
	c.address = addr

	c.logger.Infof("The client connected to the server (%s) from %s.", addr, conn.LocalAddr())

	return nil
}

// Request is a no-op: accepting the connection is what makes the server reply.
func (c *Client) Request(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return fmt.Errorf("not connected, call Dial() first")
	}
	return ctx.Err()
}

// Receive performs exactly one read into a buffer of ReadBufferSize bytes.
// Anything past the buffer is left unread. A peer that closes without
// sending yields an empty reply.
func (c *Client) Receive(ctx context.Context) ([]byte, error) {
	c.mu.RLock()
	if !c.connected || c.conn == nil {
		c.mu.RUnlock()
		return nil, fmt.Errorf("not connected, call Dial() first")
	}
	conn := c.conn
	c.mu.RUnlock()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("set read deadline failed: %w", err)
		}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, c.opts.ReadBufferSize)
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("read from connection failed: %w", err)
	}

	return buf[:n], nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("close connection failed: %w", err)
		}
		c.conn = nil
	}

	c.connected = false
	c.logger.Infof("The TCP client socket was closed.")

	return nil
}

func (c *Client) LocalAddr() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn != nil {
		return c.conn.LocalAddr()
	}

	return nil
}

func (c *Client) RemoteAddr() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn != nil {
		return c.conn.RemoteAddr()
	}

	return nil
}
