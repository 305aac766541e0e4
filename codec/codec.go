// Package codec centralizes row payload encoding.
//
// The store core never interprets row bytes; it only requires that a codec
// round-trips values and that encoding purely appends (no backpatching).
// Codec selection is a compatibility boundary between peers: a patch encoded
// with one codec must be decoded with the same one, which is why patches and
// wire frames carry the codec name.
package codec

import "fmt"

// Codec encodes/decodes row values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
//
// Used by self-describing formats (wire frames) that store the codec name in
// their header.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "msgpack":
		return Msgpack{}, true
	default:
		return nil, false
	}
}

// MustMarshal is a helper for internal tests/benchmarks.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
