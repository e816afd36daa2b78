package codec

import (
	"fmt"
	"sort"
	"sync"
)

// Codec turns registry records into bytes for storage and back.
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
	Name() string
}

const (
	NameJSON     = "json"
	NameProtobuf = "protobuf"
)

var codecRegistry = struct {
	codecs map[string]Codec
	sync.RWMutex
}{
	codecs: make(map[string]Codec),
}

func Register(name string, codec Codec) {
	codecRegistry.Lock()
	defer codecRegistry.Unlock()

	if codec == nil {
		panic(fmt.Sprintf("codec: Register codec is nil for %q", name))
	}

	if _, exists := codecRegistry.codecs[name]; exists {
		panic(fmt.Sprintf("codec: Register called twice for %q", name))
	}

	codecRegistry.codecs[name] = codec
}

func Get(name string) Codec {
	codecRegistry.RLock()
	defer codecRegistry.RUnlock()

	return codecRegistry.codecs[name]
}

func GetOrDefault(name string) Codec {
	codec := Get(name)
	if codec == nil {
		codec = Get(NameJSON)
	}
	return codec
}

func List() []string {
	codecRegistry.RLock()
	defer codecRegistry.RUnlock()

	names := make([]string, 0, len(codecRegistry.codecs))
	for name := range codecRegistry.codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(NameJSON, NewJSONCodec())
	Register(NameProtobuf, NewProtobufCodec())
}
