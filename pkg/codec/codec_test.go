package codec

import (
	"strings"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ecstasoy/addrecho/pkg/registry"
)

func sampleInstance() *registry.Instance {
	inst := registry.NewInstance("addrecho", "udp", "192.168.10.4", 13000)
	inst.Metadata["zone"] = "lab"
	inst.RegisterTime = time.Date(2026, 10, 17, 9, 30, 0, 123456789, time.UTC)
	inst.UpdateTime = inst.RegisterTime.Add(time.Minute)
	return inst
}

func TestInstanceRoundTrip(t *testing.T) {
	for _, name := range List() {
		t.Run(name, func(t *testing.T) {
			c := Get(name)
			in := sampleInstance()

			data, err := c.Encode(in)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}

			var out registry.Instance
			if err := c.Decode(data, &out); err != nil {
				t.Fatalf("Decode: %v", err)
			}

			if out.ID != in.ID || out.Service != in.Service || out.Transport != in.Transport ||
				out.Host != in.Host || out.Port != in.Port || out.Status != in.Status {
				t.Fatalf("decoded %+v, want %+v", out, in)
			}
			if out.Metadata["zone"] != "lab" {
				t.Fatalf("metadata lost: %v", out.Metadata)
			}
			if !out.RegisterTime.Equal(in.RegisterTime) || !out.UpdateTime.Equal(in.UpdateTime) {
				t.Fatalf("times differ: %v/%v vs %v/%v", out.RegisterTime, out.UpdateTime, in.RegisterTime, in.UpdateTime)
			}
		})
	}
}

func TestRegistryLookup(t *testing.T) {
	if got := List(); strings.Join(got, ",") != "json,protobuf" {
		t.Fatalf("List() = %v", got)
	}
	if GetOrDefault("xml").Name() != NameJSON {
		t.Fatal("unknown codec should fall back to json")
	}
	if Get("xml") != nil {
		t.Fatal("Get of unknown codec should be nil")
	}
}

func TestRegisterTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	Register(NameJSON, NewJSONCodec())
}

func TestProtobufCodec(t *testing.T) {
	c := NewProtobufCodec()

	if _, err := c.Encode("not a message"); err == nil {
		t.Fatal("expected error for unsupported type")
	}

	// plain proto messages pass through
	msg, _ := structpb.NewStruct(map[string]interface{}{"k": "v"})
	data, err := c.Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var back structpb.Struct
	if err := c.Decode(data, &back); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if back.GetFields()["k"].GetStringValue() != "v" {
		t.Fatalf("round trip lost field: %v", back.GetFields())
	}

	// a struct without an id is not an instance
	var inst registry.Instance
	if err := c.Decode(data, &inst); err == nil {
		t.Fatal("expected error decoding struct without id")
	}
}
