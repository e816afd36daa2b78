package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ecstasoy/addrecho/pkg/logging"
	"github.com/ecstasoy/addrecho/pkg/protocol"
	"github.com/ecstasoy/addrecho/pkg/transport"
)

// Server answers each accepted connection with the peer's address, one
// connection at a time. A second peer waits in the listen backlog until
// the current session is closed.
type Server struct {
	address  string
	opts     *transport.ServerOptions
	logger   logging.Logger
	listener net.Listener
	mu       sync.RWMutex
	serving  bool
	closed   bool
	// atomic counters
	activeConnections int64
	totalConnections  int64
	replies           int64
	dropped           int64
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

	if s.listener != nil {
		return fmt.Errorf("already listening on %s", s.address)
	}

	listener, err := listen(ctx, addr, s.opts.Backlog)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	s.address = listener.Addr().String()

	s.logger.Infof("The server (%s:%d) is ready to receive data.", s.advertiseHost(), s.port())

	return nil
}

func (s *Server) Serve(ctx context.Context, handler transport.Handler) error {
	s.mu.Lock()

	if s.listener == nil {
		s.mu.Unlock()
		return fmt.Errorf("not listening, call Listen() first")
	}

	if s.serving {
		s.mu.Unlock()
		return fmt.Errorf("already serving on %s", s.address)
	}

	s.serving = true
	listener := s.listener
	s.mu.Unlock()

	// unblock Accept when the context ends
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = listener.Close()
		case <-stop:
		}
	}()

	for {
		conn, err := listener.Accept()
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

			return fmt.Errorf("accept connection failed: %w", err)
		}

		if err := s.handleConnection(ctx, conn, handler); err != nil {
			return err
		}
	}
}

// handleConnection runs one session: reply, settle, close. Only transport
// failures are returned; a handler error just closes the session.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn, handler transport.Handler) error {
	atomic.AddInt64(&s.activeConnections, 1)
	atomic.AddInt64(&s.totalConnections, 1)
	defer atomic.AddInt64(&s.activeConnections, -1)

	peer := conn.RemoteAddr()
	peerText := protocol.FormatPeer(peer)
	s.logger.Infof("The TCP connection to the client (%s) has been established.", peerText)

	reply, err := handler(ctx, peer)
	if err != nil {
		atomic.AddInt64(&s.dropped, 1)
		s.logger.Errorf("No reply for the client (%s): %v", peerText, err)
		if err := conn.Close(); err != nil {
			return fmt.Errorf("close connection failed: %w", err)
		}
		s.logger.Infof("The TCP connection was terminated.")
		return nil
	}

	if _, err := conn.Write(reply); err != nil {
		_ = conn.Close()
		return fmt.Errorf("write reply to %s failed: %w", peerText, err)
	}
	atomic.AddInt64(&s.replies, 1)
	s.logger.Infof("The server sent a message \"%s\" to the client (%s).", reply, peerText)

	if s.opts.SettleDelay > 0 {
		timer := time.NewTimer(s.opts.SettleDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	if err := conn.Close(); err != nil {
		return fmt.Errorf("close connection failed: %w", err)
	}
	s.logger.Infof("The TCP connection was terminated.")

	return nil
}

func (s *Server) Close() error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return nil
	}

	s.closed = true
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		if err := listener.Close(); err != nil {
			return fmt.Errorf("close listener failed: %w", err)
		}
	}

	return nil
}

func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

func (s *Server) Stats() transport.Stats {
	s.mu.RLock()
	address := s.address
	s.mu.RUnlock()

	return transport.Stats{
		Active:    atomic.LoadInt64(&s.activeConnections),
		Total:     atomic.LoadInt64(&s.totalConnections),
		Replies:   atomic.LoadInt64(&s.replies),
		Dropped:   atomic.LoadInt64(&s.dropped),
		Address:   address,
		Transport: protocol.TransportTCP.String(),
	}
}

func (s *Server) advertiseHost() string {
	if s.opts.Host != "" {
		return s.opts.Host
	}
	return "0.0.0.0"
}

func (s *Server) port() int {
	if a, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}
