package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ecstasoy/addrecho/pkg/interceptor"
	"github.com/ecstasoy/addrecho/pkg/logging"
	"github.com/ecstasoy/addrecho/pkg/protocol"
	"github.com/ecstasoy/addrecho/pkg/registry"
	"github.com/ecstasoy/addrecho/pkg/transport"
	"github.com/ecstasoy/addrecho/pkg/transport/tcp"
	"github.com/ecstasoy/addrecho/pkg/transport/udp"
)

type statsTransport interface {
	transport.ServerTransport
	Stats() transport.Stats
}

// Server tells every peer the address it was seen from.
type Server struct {
	opts      *serverOptions
	logger    logging.Logger
	transport statsTransport
	chain     *interceptor.Chain

	mu       sync.Mutex
	instance *registry.Instance
}

func NewServer(opts ...Option) *Server {
	options := defaultServerOptions()
	for _, o := range opts {
		o(options)
	}

	topts := []transport.ServerOption{
		transport.WithSettleDelay(options.settleDelay),
		transport.WithServerBufferSize(options.bufferSize),
		transport.WithAdvertiseHost(options.endpoint.Host),
		transport.WithServerLogger(options.logger),
	}

	var st statsTransport
	switch options.transport {
	case protocol.TransportUDP:
		st = udp.NewServer(topts...)
	default:
		st = tcp.NewServer(topts...)
	}

	// recovery runs outermost
	interceptors := append([]interceptor.Interceptor{interceptor.Recovery()}, options.interceptors...)

	return &Server{
		opts:      options,
		logger:    options.logger,
		transport: st,
		chain:     interceptor.NewChain(interceptors...),
	}
}

// Start binds, announces and serves until ctx ends or a transport error occurs.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(ctx); err != nil {
		return err
	}
	return s.Serve(ctx)
}

func (s *Server) Listen(ctx context.Context) error {
	if err := s.transport.Listen(ctx, s.opts.endpoint.BindAddress()); err != nil {
		return fmt.Errorf("failed to listen %s transport: %w", s.opts.transport, err)
	}
	return nil
}

// Serve runs the receive loop of a bound server. A context cancellation is
// reported as nil.
func (s *Server) Serve(ctx context.Context) error {
	if s.opts.registry != nil {
		if err := s.register(ctx); err != nil {
			_ = s.transport.Close()
			return err
		}
		defer s.deregister()

		if s.opts.heartbeat > 0 {
			hbCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go s.heartbeatLoop(hbCtx)
		}
	}

	err := s.transport.Serve(ctx, s.handle)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (s *Server) handle(ctx context.Context, peer net.Addr) ([]byte, error) {
	ex := &protocol.Exchange{
		Role:      protocol.RoleServer,
		Transport: s.opts.transport,
		Peer:      peer,
	}

	return s.chain.Intercept(ctx, ex, compose)
}

// compose builds the reply: the peer's address as text, nothing else.
func compose(_ context.Context, ex *protocol.Exchange) ([]byte, error) {
	return []byte(protocol.FormatPeer(ex.Peer)), nil
}

func (s *Server) register(ctx context.Context) error {
	port := s.opts.endpoint.Port
	if addr := s.transport.Addr(); addr != nil {
		switch a := addr.(type) {
		case *net.TCPAddr:
			port = a.Port
		case *net.UDPAddr:
			port = a.Port
		}
	}

	inst := registry.NewInstance(s.opts.service, s.opts.transport.String(), s.opts.endpoint.Host, port)
	if err := s.opts.registry.Register(ctx, inst); err != nil {
		return fmt.Errorf("register %s: %w", s.opts.service, err)
	}

	s.mu.Lock()
	s.instance = inst
	s.mu.Unlock()

	s.logger.Infof("The server registered as %s.", inst)
	return nil
}

func (s *Server) deregister() {
	s.mu.Lock()
	inst := s.instance
	s.instance = nil
	s.mu.Unlock()

	if inst == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.opts.registry.Deregister(ctx, inst.Service, inst.ID); err != nil {
		s.logger.Errorf("Deregister %s failed: %v", inst.ID, err)
	}
}

func (s *Server) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			inst := s.Instance()
			if inst == nil {
				continue
			}
			if err := s.opts.registry.Heartbeat(ctx, inst.Service, inst.ID); err != nil && ctx.Err() == nil {
				s.logger.Errorf("Heartbeat for %s failed: %v", inst.ID, err)
			}
		}
	}
}

// Instance is the registry record of a serving server, or nil.
func (s *Server) Instance() *registry.Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instance
}

func (s *Server) Stop() error {
	return s.transport.Close()
}

func (s *Server) Addr() string {
	if s.transport.Addr() != nil {
		return s.transport.Addr().String()
	}
	return ""
}

func (s *Server) Stats() transport.Stats {
	return s.transport.Stats()
}
