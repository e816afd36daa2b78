package codec

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ecstasoy/addrecho/pkg/registry"
)

// ProtobufCodec stores registry instances as a google.protobuf.Struct.
// Any other proto.Message is marshalled as is.
type ProtobufCodec struct{}

var _ Codec = (*ProtobufCodec)(nil)

func NewProtobufCodec() Codec {
	return &ProtobufCodec{}
}

func (c *ProtobufCodec) Encode(v interface{}) ([]byte, error) {
	if msg, ok := v.(proto.Message); ok {
		return proto.Marshal(msg)
	}

	if inst, ok := v.(*registry.Instance); ok {
		s, err := c.instanceToProto(inst)
		if err != nil {
			return nil, fmt.Errorf("convert instance to proto failed: %w", err)
		}
		return proto.Marshal(s)
	}

	return nil, fmt.Errorf("protobuf codec: unsupported type %T", v)
}

func (c *ProtobufCodec) Decode(data []byte, v interface{}) error {
	if msg, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, msg)
	}

	if inst, ok := v.(*registry.Instance); ok {
		s := &structpb.Struct{}
		if err := proto.Unmarshal(data, s); err != nil {
			return fmt.Errorf("unmarshal proto instance failed: %w", err)
		}
		if err := c.protoToInstance(s, inst); err != nil {
			return fmt.Errorf("convert proto to instance failed: %w", err)
		}
		return nil
	}

	return fmt.Errorf("protobuf codec: unsupported type %T", v)
}

func (c *ProtobufCodec) Name() string {
	return NameProtobuf
}

func (c *ProtobufCodec) instanceToProto(inst *registry.Instance) (*structpb.Struct, error) {
	metadata := make(map[string]interface{}, len(inst.Metadata))
	for k, v := range inst.Metadata {
		metadata[k] = v
	}

	return structpb.NewStruct(map[string]interface{}{
		"id":            inst.ID,
		"service":       inst.Service,
		"transport":     inst.Transport,
		"host":          inst.Host,
		"port":          inst.Port,
		"status":        int(inst.Status),
		"metadata":      metadata,
		"register_time": inst.RegisterTime.Format(time.RFC3339Nano),
		"update_time":   inst.UpdateTime.Format(time.RFC3339Nano),
	})
}

func (c *ProtobufCodec) protoToInstance(s *structpb.Struct, inst *registry.Instance) error {
	f := s.GetFields()

	inst.ID = f["id"].GetStringValue()
	inst.Service = f["service"].GetStringValue()
	inst.Transport = f["transport"].GetStringValue()
	inst.Host = f["host"].GetStringValue()
	inst.Port = int(f["port"].GetNumberValue())
	inst.Status = registry.InstanceStatus(int(f["status"].GetNumberValue()))

	if inst.ID == "" {
		return fmt.Errorf("missing instance id")
	}

	if md := f["metadata"].GetStructValue(); md != nil {
		inst.Metadata = make(map[string]string, len(md.GetFields()))
		for k, v := range md.GetFields() {
			inst.Metadata[k] = v.GetStringValue()
		}
	}

	var err error
	if inst.RegisterTime, err = parseTime(f["register_time"]); err != nil {
		return fmt.Errorf("register_time: %w", err)
	}
	if inst.UpdateTime, err = parseTime(f["update_time"]); err != nil {
		return fmt.Errorf("update_time: %w", err)
	}

	return nil
}

func parseTime(v *structpb.Value) (time.Time, error) {
	s := v.GetStringValue()
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
