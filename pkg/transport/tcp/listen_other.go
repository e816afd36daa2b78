//go:build !unix

package tcp

import (
	"context"
	"net"
)

// listen falls back to the net package; the backlog is left to the OS.
func listen(ctx context.Context, addr string, _ int) (net.Listener, error) {
	lc := net.ListenConfig{}
	return lc.Listen(ctx, "tcp4", addr)
}
