package udp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ecstasoy/addrecho/pkg/logging"
	"github.com/ecstasoy/addrecho/pkg/transport"
)

// Client owns an unconnected datagram socket. A zero-length datagram to the
// server is the request; the first datagram read back is the reply.
type Client struct {
	address string
	opts    *transport.ClientOptions
	logger  logging.Logger
	conn    *net.UDPConn
	remote  *net.UDPAddr
	mu      sync.RWMutex
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

// Dial resolves the server address and opens a local socket. Nothing is sent.
func (c *Client) Dial(ctx context.Context, address string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("socket already open for %s", c.remote)
	}

	addr := address
	if addr == "" {
		addr = c.address
	}

	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return &net.OpError{Op: "dial", Net: "udp", Err: fmt.Errorf("resolve %s failed: %w", addr, err)}
	}

	network := "udp4"
	if raddr.IP != nil && raddr.IP.To4() == nil {
		network = "udp6"
	}

	lc := net.ListenConfig{}
	pc, err := lc.ListenPacket(ctx, network, ":0")
	if err != nil {
		return fmt.Errorf("open udp socket failed: %w", err)
	}

	c.conn = pc.(*net.UDPConn)
	c.remote = raddr
	c.address = addr

	c.logger.Infof("The client UDP socket was created.")

	return nil
}

func (c *Client) Request(ctx context.Context) error {
	c.mu.RLock()
	conn, remote := c.conn, c.remote
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("socket not open, call Dial() first")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := conn.WriteToUDP(nil, remote); err != nil {
		return fmt.Errorf("send request to %s failed: %w", remote, err)
	}
	c.logger.Infof("The client sent a request to the server (%s).", remote)

	return nil
}

// Receive reads one datagram into a buffer of ReadBufferSize bytes. A
// larger datagram is truncated by the kernel and no error is reported.
// Without a context deadline this blocks until a datagram arrives.
func (c *Client) Receive(ctx context.Context) ([]byte, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return nil, fmt.Errorf("socket not open, call Dial() first")
	}

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
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("receive datagram failed: %w", err)
	}

	return buf[:n], nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("close socket failed: %w", err)
	}
	c.conn = nil
	c.logger.Infof("The UDP client socket was closed.")

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

	if c.remote != nil {
		return c.remote
	}
	return nil
}
