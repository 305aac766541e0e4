package codec

import (
	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack is the MessagePack codec.
//
// Component rows are small and replicated every tick, so the default favors
// compact encoding over readability.
type Msgpack struct{}

// Marshal encodes the value to MessagePack.
func (Msgpack) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

// Unmarshal decodes the MessagePack data into v.
func (Msgpack) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// Name returns the unique name of the codec ("msgpack").
func (Msgpack) Name() string { return "msgpack" }

// Default is the codec used when none is configured.
var Default Codec = Msgpack{}
