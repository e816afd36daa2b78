package udp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/ecstasoy/addrecho/pkg/logging"
	"github.com/ecstasoy/addrecho/pkg/protocol"
	"github.com/ecstasoy/addrecho/pkg/transport"
)

// Server answers every datagram with one datagram carrying the sender's
// address. Nothing is kept between datagrams and nothing is resent.
type Server struct {
	address string
	opts    *transport.ServerOptions
	logger  logging.Logger
	conn    *net.UDPConn
	mu      sync.RWMutex
	serving bool
	closed  bool
	// atomic counters
	received int64
	replies  int64
	dropped  int64
}

var _ transport.ServerTransport = (*Server)(nil)

func NewServer(options ...transport.ServerOption) *Server {
	opts := transport.DefaultServerOptions()

	for _, o := range options {
		o(opts)
	}

	return &Server{
		opts:   opts,
		logger: logging.OrDiscard(opts.Logger),
	}
}

func (s *Server) Listen(ctx context.Context, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return fmt.Errorf("already listening on %s", s.address)
	}

	lc := net.ListenConfig{}
	pc, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.conn = pc.(*net.UDPConn)
	s.address = pc.LocalAddr().String()

	host := s.opts.Host
	if host == "" {
		host = "0.0.0.0"
	}
	s.logger.Infof("The server (%s:%d) is ready to receive data.", host, s.conn.LocalAddr().(*net.UDPAddr).Port)

	return nil
}

func (s *Server) Serve(ctx context.Context, handler transport.Handler) error {
	s.mu.Lock()

	if s.conn == nil {
		s.mu.Unlock()
		return fmt.Errorf("not listening, call Listen() first")
	}

	if s.serving {
		s.mu.Unlock()
		return fmt.Errorf("already serving on %s", s.address)
	}

	s.serving = true
	conn := s.conn
	s.mu.Unlock()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	buf := make([]byte, s.opts.ReadBufferSize)
	for {
		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			s.mu.RLock()
			closed := s.closed
			s.mu.RUnlock()
			if closed {
				return nil
			}

			return fmt.Errorf("receive datagram failed: %w", err)
		}

		atomic.AddInt64(&s.received, 1)
		peerText := protocol.FormatPeer(peer)
		s.logger.Infof("The server received a message from client (%s), %d bytes.", peerText, n)

		reply, err := handler(ctx, peer)
		if err != nil {
			atomic.AddInt64(&s.dropped, 1)
			s.logger.Errorf("No reply for the client (%s): %v", peerText, err)
			continue
		}

		if _, err := conn.WriteToUDP(reply, peer); err != nil {
			return fmt.Errorf("send reply to %s failed: %w", peerText, err)
		}
		atomic.AddInt64(&s.replies, 1)
		s.logger.Infof("The server sent a message \"%s\" to the client (%s).", reply, peerText)
	}
}

func (s *Server) Close() error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return nil
	}

	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			return fmt.Errorf("close socket failed: %w", err)
		}
	}

	return nil
}

func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.conn != nil {
		return s.conn.LocalAddr()
	}
	return nil
}

func (s *Server) Stats() transport.Stats {
	s.mu.RLock()
	address := s.address
	s.mu.RUnlock()

	return transport.Stats{
		Total:     atomic.LoadInt64(&s.received),
		Replies:   atomic.LoadInt64(&s.replies),
		Dropped:   atomic.LoadInt64(&s.dropped),
		Address:   address,
		Transport: protocol.TransportUDP.String(),
	}
}
