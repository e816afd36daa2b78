package protocol

import (
	"fmt"
	"strings"
)

type Role byte

const (
	RoleServer Role = 0x01
	RoleClient Role = 0x02
)

func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	default:
		return fmt.Sprintf("unknown(%d)", r)
	}
}

type Transport byte

const (
	TransportTCP Transport = 0x00
	TransportUDP Transport = 0x01
)

func (t Transport) String() string {
	switch t {
	case TransportTCP:
		return "tcp"
	case TransportUDP:
		return "udp"
	default:
		return fmt.Sprintf("unknown(%d)", t)
	}
}

// ParseTransport accepts "tcp" or "udp" in any case. An empty string means TCP.
func ParseTransport(s string) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tcp":
		return TransportTCP, nil
	case "udp":
		return TransportUDP, nil
	default:
		return 0, fmt.Errorf("unknown transport %q", s)
	}
}
