package registry

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type Instance struct {
	ID        string            `json:"id"`
	Service   string            `json:"service"`
	Transport string            `json:"transport"`
	Host      string            `json:"host"`
	Port      int               `json:"port"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Status    InstanceStatus    `json:"status"`

	RegisterTime time.Time `json:"register_time"`
	UpdateTime   time.Time `json:"update_time"`
}

type InstanceStatus int

const (
	StatusUnknown InstanceStatus = iota
	StatusUp
	StatusDown
)

func (s InstanceStatus) String() string {
	switch s {
	case StatusUp:
		return "UP"
	case StatusDown:
		return "DOWN"
	default:
		return "UNKNOWN"
	}
}

func NewInstance(service, transport, host string, port int) *Instance {
	now := time.Now()
	return &Instance{
		ID:           uuid.NewString(),
		Service:      service,
		Transport:    transport,
		Host:         host,
		Port:         port,
		Metadata:     make(map[string]string),
		Status:       StatusUp,
		RegisterTime: now,
		UpdateTime:   now,
	}
}

func (i *Instance) Endpoint() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

func (i *Instance) String() string {
	return fmt.Sprintf("%s %s/%s %s (%s)", i.ID, i.Service, i.Transport, i.Endpoint(), i.Status)
}

// Filter keeps the instances that are up and speak transport. An empty
// transport matches all.
func Filter(instances []*Instance, transport string) []*Instance {
	var out []*Instance
	for _, inst := range instances {
		if inst.Status != StatusUp {
			continue
		}
		if transport != "" && inst.Transport != transport {
			continue
		}
		out = append(out, inst)
	}
	return out
}
