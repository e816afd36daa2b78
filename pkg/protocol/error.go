package protocol

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
)

type ErrorKind int

const (
	ErrorKindNone ErrorKind = iota
	ErrorKindValidation
	ErrorKindBind
	ErrorKindConnect
	ErrorKindTimeout
	ErrorKindCanceled
	ErrorKindIO
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "none"
	case ErrorKindValidation:
		return "validation"
	case ErrorKindBind:
		return "bind"
	case ErrorKindConnect:
		return "connect"
	case ErrorKindTimeout:
		return "timeout"
	case ErrorKindCanceled:
		return "canceled"
	default:
		return "io"
	}
}

// Classify names the kind of failure behind err. Everything past validation
// is fatal for the process; the kind only decides how the last log line reads.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}

	if errors.Is(err, ErrInvalidPort) || errors.Is(err, ErrInvalidHost) {
		return ErrorKindValidation
	}

	if errors.Is(err, context.Canceled) {
		return ErrorKindCanceled
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrorKindTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "listen", "bind":
			return ErrorKindBind
		case "dial":
			return ErrorKindConnect
		}
	}

	if errors.Is(err, syscall.EADDRINUSE) || errors.Is(err, syscall.EACCES) {
		return ErrorKindBind
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrorKindConnect
	}

	return ErrorKindIO
}
