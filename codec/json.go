package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// Use it when debuggability of patch payloads matters more than size: rows
// are readable on the wire at the cost of roughly twice the bytes of
// msgpack for typical component structs.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }
