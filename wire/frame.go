// Package wire encodes patches into self-describing, compressed frames for
// transport between server and clients.
//
// The store core has no wire format of its own; this package supplies one
// for the piece that actually crosses the network, the Patch. A frame
// records the row codec's name in its header, so the receiving side decodes
// rows with whatever the sender encoded them with.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/klauspost/compress/s2"

	"github.com/hupe1980/entstore"
	"github.com/hupe1980/entstore/codec"
	"github.com/hupe1980/entstore/model"
)

// Frame format:
//
//	[Magic:4][FrameVersion:1][CodecNameLen:1][CodecName:N]
//	[s2-compressed body]
//
// Body:
//
//	[EntryCount:4]
//	per entry: [IDCounter:8][IDRandom:8][Version:8][PayloadLen:4][Payload:N]
//
// All integers little-endian.
const (
	frameMagic   uint32 = 0x45505431 // "EPT1"
	frameVersion byte   = 1

	// maxBodyLen caps the decompressed body size a frame may declare.
	// Both the s2 length header and the entry count are attacker-controlled,
	// so neither may drive an allocation before it is bounded.
	maxBodyLen = 1 << 28 // 256 MiB

	entryHeaderLen = 28 // counter + random + version + payload length
)

var (
	// ErrBadMagic indicates the data does not start with a patch frame.
	ErrBadMagic = errors.New("wire: bad frame magic")
	// ErrUnsupportedVersion indicates a frame from an incompatible peer.
	ErrUnsupportedVersion = errors.New("wire: unsupported frame version")
	// ErrTruncatedFrame indicates the frame ends mid-structure.
	ErrTruncatedFrame = errors.New("wire: truncated frame")
	// ErrUnknownCodec indicates the frame names a row codec this build does
	// not have.
	ErrUnknownCodec = errors.New("wire: unknown row codec")
	// ErrFrameTooLarge indicates the frame declares a body past maxBodyLen.
	ErrFrameTooLarge = errors.New("wire: frame body exceeds size limit")
)

// FrameEntry is one replicated row: identity, recency, and the still-encoded
// payload.
type FrameEntry struct {
	ID      model.ObjectID
	Version model.Version
	Payload []byte
}

// PatchFrame is a decoded patch frame, ready to apply to a store.
type PatchFrame struct {
	Codec   string
	Entries []FrameEntry
}

// EncodePatch serializes a patch into a compressed frame.
func EncodePatch(p *entstore.Patch) ([]byte, error) {
	name := p.CodecName()
	if len(name) > 255 {
		return nil, fmt.Errorf("wire: codec name %q too long", name)
	}

	body := make([]byte, 0, 4+p.Len()*32)
	body = binary.LittleEndian.AppendUint32(body, uint32(p.Len()))
	for i := 0; i < p.Len(); i++ {
		id, version, payload := p.Entry(i)
		body = binary.LittleEndian.AppendUint64(body, id.Counter)
		body = binary.LittleEndian.AppendUint64(body, id.Random)
		body = binary.LittleEndian.AppendUint64(body, uint64(version))
		body = binary.LittleEndian.AppendUint32(body, uint32(len(payload)))
		body = append(body, payload...)
	}

	header := make([]byte, 0, 6+len(name))
	header = binary.LittleEndian.AppendUint32(header, frameMagic)
	header = append(header, frameVersion, byte(len(name)))
	header = append(header, name...)
	return append(header, s2.Encode(nil, body)...), nil
}

// DecodePatch parses and decompresses a frame. The row payloads remain
// encoded; use ApplyFrame (or codec.ByName plus Unmarshal) to decode them.
//
// Frames arrive from the network, so every failure here is a recoverable
// error, never a panic.
func DecodePatch(data []byte) (*PatchFrame, error) {
	if len(data) < 6 {
		return nil, ErrTruncatedFrame
	}
	if binary.LittleEndian.Uint32(data) != frameMagic {
		return nil, ErrBadMagic
	}
	if data[4] != frameVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, data[4])
	}
	nameLen := int(data[5])
	if len(data) < 6+nameLen {
		return nil, ErrTruncatedFrame
	}
	name := string(data[6 : 6+nameLen])

	compressed := data[6+nameLen:]
	if n, err := s2.DecodedLen(compressed); err != nil {
		return nil, fmt.Errorf("wire: decompress frame: %w", err)
	} else if n > maxBodyLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	body, err := s2.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("wire: decompress frame: %w", err)
	}
	if len(body) < 4 {
		return nil, ErrTruncatedFrame
	}

	count := int(binary.LittleEndian.Uint32(body))
	body = body[4:]
	if count > len(body)/entryHeaderLen {
		// The body cannot possibly hold that many entries; reject the claim
		// before it sizes an allocation.
		return nil, ErrTruncatedFrame
	}

	frame := &PatchFrame{Codec: name, Entries: make([]FrameEntry, 0, count)}
	for n := 0; n < count; n++ {
		if len(body) < entryHeaderLen {
			return nil, ErrTruncatedFrame
		}
		counter := binary.LittleEndian.Uint64(body)
		random := binary.LittleEndian.Uint64(body[8:])
		version := binary.LittleEndian.Uint64(body[16:])
		payloadLen := int(binary.LittleEndian.Uint32(body[24:]))
		body = body[entryHeaderLen:]

		if len(body) < payloadLen {
			return nil, ErrTruncatedFrame
		}
		if counter == 0 {
			return nil, fmt.Errorf("wire: entry %d has zero id counter", n)
		}
		if version == 0 {
			return nil, fmt.Errorf("wire: entry %d has invalid version", n)
		}

		frame.Entries = append(frame.Entries, FrameEntry{
			ID:      model.NewObjectID(counter, random),
			Version: model.Version(version),
			Payload: body[:payloadLen:payloadLen],
		})
		body = body[payloadLen:]
	}

	return frame, nil
}

// ApplyFrame replays a decoded frame into the target store with the same
// recency rules as entstore.Apply: entries at or below the target's
// existing version for an id are skipped, the store's current metadata is
// restored if applying advanced it, and Maintenance runs at the end.
//
// Like entstore.Apply, a decode failure aborts without rolling back entries
// already applied.
func ApplyFrame[T any](f *PatchFrame, s *entstore.Store[T, model.Version]) error {
	rowCodec, ok := codec.ByName(f.Codec)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCodec, f.Codec)
	}

	// Patches are id-sorted on extraction; re-sort in case the sender lied.
	entries := f.Entries
	if !slices.IsSortedFunc(entries, compareEntries) {
		entries = slices.Clone(entries)
		slices.SortFunc(entries, compareEntries)
	}

	original := s.Meta()
	for _, e := range entries {
		if existing, ok := s.MetaForID(e.ID); ok && existing >= e.Version {
			continue
		}
		var value T
		if err := rowCodec.Unmarshal(e.Payload, &value); err != nil {
			return entstore.NewDecodeError(e.ID, e.Version, err)
		}
		s.SetMeta(e.Version)
		s.Insert(e.ID, value)
	}
	if s.Meta() > original {
		s.SetMeta(original)
	}
	s.Maintenance()

	return nil
}

func compareEntries(a, b FrameEntry) int {
	return a.ID.Compare(b.ID)
}
