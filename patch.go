package entstore

import (
	"slices"
	"time"

	"github.com/tidwall/btree"

	"github.com/hupe1980/entstore/codec"
	"github.com/hupe1980/entstore/model"
)

// Predicate selects which object ids are relevant to a recipient, e.g.
// spatial or interest-based visibility. A nil Predicate matches everything.
type Predicate func(model.ObjectID) bool

type patchEntry struct {
	id      model.ObjectID
	version model.Version
	start   int
	end     int
}

// PatchBuilder holds the serialized changed rows of one store scan, grouped
// by version and backed by a single shared buffer.
//
// Patching every peer independently would be O(peers * rows); a builder pays
// the O(rows) serialization once and then slices out per-peer subsets with
// ExtractPatch. The builder is immutable after Prepare, so extraction is safe
// from multiple goroutines (see ExtractAll).
type PatchBuilder struct {
	buf       []byte
	versions  btree.Map[model.Version, []patchEntry]
	rowCodec  codec.Codec
	codecName string
}

// Prepare scans the store's committed rows once and serializes every live
// row whose version is strictly greater than baseline and whose id matches
// pred into one shared buffer. A zero baseline includes everything.
//
// Only committed rows are scanned: Prepare is intended to run at the end of
// a tick, after Maintenance has folded staged inserts in.
func Prepare[T any](s *Store[T, model.Version], baseline model.Version, pred Predicate) (*PatchBuilder, error) {
	start := time.Now()

	b := &PatchBuilder{
		rowCodec:  s.opts.codec,
		codecName: s.opts.codec.Name(),
	}

	rows := 0
	for i := 0; i < len(s.keys); i++ {
		if s.dead.Contains(uint32(i)) {
			continue
		}
		v := s.meta[i]
		if v <= baseline {
			continue
		}
		id := s.keys[i]
		if pred != nil && !pred(id) {
			continue
		}

		off := len(b.buf)
		var err error
		b.buf, err = appendRow(b.rowCodec, b.buf, &s.values[i])
		if err != nil {
			return nil, err
		}

		entries, _ := b.versions.Get(v)
		b.versions.Set(v, append(entries, patchEntry{id: id, version: v, start: off, end: len(b.buf)}))
		rows++
	}

	s.opts.metrics.RecordPrepare(rows, len(b.buf), time.Since(start))
	return b, nil
}

// appendRow encodes v onto dst. Codecs that implement codec.Appender encode
// straight into the shared buffer; others fall back to Marshal plus copy.
func appendRow(c codec.Codec, dst []byte, v any) ([]byte, error) {
	if a, ok := c.(codec.Appender); ok {
		return a.MarshalAppend(dst, v)
	}
	enc, err := c.Marshal(v)
	if err != nil {
		return dst, err
	}
	return append(dst, enc...), nil
}

// Rows is the total number of serialized entries across all versions.
func (b *PatchBuilder) Rows() int {
	n := 0
	b.versions.Scan(func(_ model.Version, entries []patchEntry) bool {
		n += len(entries)
		return true
	})
	return n
}

// BufferLen is the size of the shared serialized buffer in bytes.
func (b *PatchBuilder) BufferLen() int {
	return len(b.buf)
}

// ExtractPatch collects the entries with versions strictly greater than
// baseline whose ids match pred. A zero baseline defaults to
// model.MinVersion, so rows stamped exactly MinVersion are treated as state
// every recipient already starts with.
//
// The result is sorted ascending by id, not by version: replaying id-sorted
// entries into a store hits the insert fast paths instead of worst-case
// shifts. Entries are views into the builder's shared buffer, not copies.
func (b *PatchBuilder) ExtractPatch(baseline model.Version, pred Predicate) *Patch {
	p := &Patch{buf: b.buf, rowCodec: b.rowCodec, codecName: b.codecName}

	base := baseline
	if base < model.MinVersion {
		base = model.MinVersion
	}
	if base == model.MaxVersion {
		return p
	}

	b.versions.Ascend(base.Next(), func(_ model.Version, entries []patchEntry) bool {
		for _, e := range entries {
			if pred == nil || pred(e.id) {
				p.entries = append(p.entries, e)
			}
		}
		return true
	})

	slices.SortFunc(p.entries, func(a, b patchEntry) int {
		return a.id.Compare(b.id)
	})

	return p
}

// Patch is an id-sorted selection of serialized rows, ready to replay into a
// store. Its entries share the originating builder's buffer.
type Patch struct {
	entries   []patchEntry
	buf       []byte
	rowCodec  codec.Codec
	codecName string
}

// Len is the number of entries in the patch.
func (p *Patch) Len() int {
	return len(p.entries)
}

// CodecName is the stable name of the codec the rows were encoded with.
func (p *Patch) CodecName() string {
	return p.codecName
}

// Entry returns the id, version, and serialized payload of entry i. The
// payload is a view into the shared buffer and must not be mutated.
func (p *Patch) Entry(i int) (model.ObjectID, model.Version, []byte) {
	e := p.entries[i]
	return e.id, e.version, p.buf[e.start:e.end]
}

// IDs returns the ids of all entries in patch order (ascending).
func (p *Patch) IDs() []model.ObjectID {
	ids := make([]model.ObjectID, len(p.entries))
	for i, e := range p.entries {
		ids[i] = e.id
	}
	return ids
}

// Apply replays the patch into the target store.
//
// Per-row recency decides: an entry whose version is less than or equal to
// the target's existing version for that id is skipped, so a stale patch can
// never overwrite newer state and re-applying a patch is a no-op. The
// store's current metadata is restored afterwards if applying advanced it,
// and Maintenance runs at the end to fold in and compact the patched rows.
//
// A decode failure aborts with *DecodeError. Entries applied before the
// failure are NOT rolled back; callers that need atomicity must apply to a
// scratch store and swap, or rely on later patches for convergence.
func Apply[T any](p *Patch, s *Store[T, model.Version]) error {
	start := time.Now()
	original := s.Meta()

	var applied, skipped int
	for _, e := range p.entries {
		if existing, ok := s.MetaForID(e.id); ok && existing >= e.version {
			skipped++
			continue
		}

		var value T
		if err := p.rowCodec.Unmarshal(p.buf[e.start:e.end], &value); err != nil {
			derr := NewDecodeError(e.id, e.version, err)
			s.opts.metrics.RecordApply(applied, skipped, time.Since(start), derr)
			s.opts.logger.Error("patch apply failed",
				"id", e.id.String(),
				"version", e.version.String(),
				"applied", applied,
				"err", err,
			)
			return derr
		}

		s.SetMeta(e.version)
		s.Insert(e.id, value)
		applied++
	}

	if s.Meta() > original {
		s.SetMeta(original)
	}

	s.Maintenance()
	s.opts.metrics.RecordApply(applied, skipped, time.Since(start), nil)
	return nil
}
