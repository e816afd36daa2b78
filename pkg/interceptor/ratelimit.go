package interceptor

import (
	"context"
	"net"

	"github.com/ecstasoy/addrecho/pkg/protocol"
	"github.com/ecstasoy/addrecho/pkg/ratelimiter"
)

func RateLimit(limiter ratelimiter.RateLimiter) Interceptor {
	return func(ctx context.Context, ex *protocol.Exchange, invoker Invoker) ([]byte, error) {
		if !limiter.Allow(ctx) {
			return nil, ratelimiter.ErrRateLimitExceeded
		}

		return invoker(ctx, ex)
	}
}

// RateLimitPerPeer keys the limiter on the peer's IP, ignoring its port.
func RateLimitPerPeer(limiter *ratelimiter.Keyed) Interceptor {
	return func(ctx context.Context, ex *protocol.Exchange, invoker Invoker) ([]byte, error) {
		if !limiter.Allow(ctx, peerHost(ex.Peer)) {
			return nil, ratelimiter.ErrRateLimitExceeded
		}

		return invoker(ctx, ex)
	}
}

func peerHost(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.IP.String()
	case *net.UDPAddr:
		return a.IP.String()
	case nil:
		return ""
	default:
		host, _, err := net.SplitHostPort(a.String())
		if err != nil {
			return a.String()
		}
		return host
	}
}
