package protocol

import (
	"fmt"
	"net"
)

// ReceiveBufferSize is the size of the single read performed by every
// receiving side. Nothing frames the message: a longer payload is cut at
// this size and no error is reported.
const ReceiveBufferSize = 1024

// FormatPeer builds the reply text "<ip>:<port>" for the observed peer.
// IPv6 hosts are not bracketed.
func FormatPeer(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return fmt.Sprintf("%s:%d", a.IP.String(), a.Port)
	case *net.UDPAddr:
		return fmt.Sprintf("%s:%d", a.IP.String(), a.Port)
	case nil:
		return ""
	default:
		host, port, err := net.SplitHostPort(a.String())
		if err != nil {
			return a.String()
		}
		return host + ":" + port
	}
}

// Exchange describes one request/response interaction as seen by one side.
type Exchange struct {
	Role      Role
	Transport Transport
	Peer      net.Addr
}

func (e *Exchange) String() string {
	return fmt.Sprintf("%s/%s %s", e.Role, e.Transport, FormatPeer(e.Peer))
}
