package codec

import (
	"bytes"
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Appender is implemented by codecs that can encode directly onto an
// existing buffer. The patch builder serializes every changed row into one
// shared buffer; appending avoids a per-row allocation for codecs that
// support it.
//
// MarshalAppend must purely append: dst[:len(dst)] is never rewritten.
type Appender interface {
	MarshalAppend(dst []byte, v any) ([]byte, error)
}

// MarshalAppend encodes v onto dst using a buffer-backed encoder.
func (Msgpack) MarshalAppend(dst []byte, v any) ([]byte, error) {
	buf := bytes.NewBuffer(dst)
	if err := msgpack.NewEncoder(buf).Encode(v); err != nil {
		return dst, err
	}
	return buf.Bytes(), nil
}

// MarshalAppend encodes v onto dst.
func (JSON) MarshalAppend(dst []byte, v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return dst, err
	}
	return append(dst, b...), nil
}
