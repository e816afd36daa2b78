package protocol

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// MaxPort is the upper bound accepted by Validate. It is one past the last
// real port number; 65536 passes validation and fails later at bind or dial.
const MaxPort = 65536

var (
	ErrInvalidPort = errors.New("port error")
	ErrInvalidHost = errors.New("incorrect IP address")
)

type Endpoint struct {
	Host string
	Port int
}

// String is the dialable form of the endpoint; IPv6 hosts are bracketed.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// BindAddress is the wildcard address servers listen on for this endpoint's port.
func (e Endpoint) BindAddress() string {
	return fmt.Sprintf(":%d", e.Port)
}

// Validate checks a raw host and port pair before any socket is opened.
// The port must consist of ASCII digits only and lie in [0, MaxPort]; the
// host must be an IPv4 or IPv6 literal.
func Validate(host, port string) error {
	if !isDigits(port) {
		return fmt.Errorf("%w: %q is not a number", ErrInvalidPort, port)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 0 || p > MaxPort {
		return fmt.Errorf("%w: %s out of range", ErrInvalidPort, port)
	}

	if _, err := netip.ParseAddr(host); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidHost, host)
	}

	return nil
}

func Valid(host, port string) bool {
	return Validate(host, port) == nil
}

// ParseEndpoint validates host and port and returns the resulting Endpoint.
func ParseEndpoint(host, port string) (Endpoint, error) {
	if err := Validate(host, port); err != nil {
		return Endpoint{}, err
	}
	p, _ := strconv.Atoi(port)
	return Endpoint{Host: host, Port: p}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
