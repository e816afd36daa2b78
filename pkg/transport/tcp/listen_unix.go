//go:build unix

package tcp

import (
	"context"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// listen binds an IPv4 stream socket on addr with an explicit accept
// backlog. The net package always asks the kernel for its maximum, so the
// socket is built by hand and handed to net.FileListener.
func listen(ctx context.Context, addr string, backlog int) (net.Listener, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tcpAddr, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return nil, &net.OpError{Op: "listen", Net: "tcp", Err: err}
	}

	sa := &unix.SockaddrInet4{Port: tcpAddr.Port}
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}

	opErr := func(call string, err error) error {
		return &net.OpError{Op: "listen", Net: "tcp", Addr: tcpAddr, Err: os.NewSyscallError(call, err)}
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, opErr("socket", err)
	}
	unix.CloseOnExec(fd)

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, opErr("setsockopt", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, opErr("bind", err)
	}
	if backlog <= 0 {
		backlog = 1
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return nil, opErr("listen", err)
	}

	f := os.NewFile(uintptr(fd), fmt.Sprintf("tcp:%s", tcpAddr))
	defer f.Close()

	// FileListener dups the descriptor; f is closed on return.
	ln, err := net.FileListener(f)
	if err != nil {
		return nil, opErr("filelistener", err)
	}
	return ln, nil
}
