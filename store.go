package entstore

import (
	"fmt"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/tidwall/btree"

	"github.com/hupe1980/entstore/model"
)

// Store is a sorted, compacting column store keyed by model.ObjectID.
//
// Internally it is three parallel columns (keys, values, metadata) plus a
// tombstone set and a staging tree for out-of-order inserts. Keys in the main
// columns are always sorted ascending; iteration is always in increasing id
// order, which is the primary invariant: it keeps patch replay append-shaped
// and merges cheap.
//
// Deletion tombstones a slot instead of shifting, so indices stay stable and
// iteration during deletion is safe. Inserts that would require shifting
// interior elements are staged in a pending tree and folded in by
// CommitPendingInserts. Maintenance should be called periodically (typically
// once per tick) to commit staged inserts, reclaim tombstones, and shrink
// backing storage; it is the only operation that invalidates indices.
//
// Each mutation is stamped with the store's current metadata M, usually the
// tick's model.Version set once per tick via SetMeta. Metadata on a row only
// changes when the value actually changes.
//
// A Store is owned by one logical execution context at a time. It has no
// internal locking; callers that share a store across goroutines must
// synchronize externally.
type Store[T any, M any] struct {
	keys   []model.ObjectID
	values []T
	meta   []M

	// dead holds the main-column indexes that are tombstoned. A slot keeps
	// its stale key and value until Compact or reuse.
	dead *roaring.Bitmap

	// pending stages inserts whose sorted position is not the end of the
	// main columns. Ordered by id so commit can merge in one pass.
	pending *btree.BTreeG[*pendingEntry[T, M]]

	currentMeta M
	opts        options
}

type pendingEntry[T any, M any] struct {
	id    model.ObjectID
	value T
	meta  M
}

func newPendingTree[T any, M any]() *btree.BTreeG[*pendingEntry[T, M]] {
	return btree.NewBTreeG[*pendingEntry[T, M]](func(a, b *pendingEntry[T, M]) bool {
		return a.id.Less(b.id)
	})
}

// New creates an empty store whose current metadata is initialMeta.
func New[T any, M any](initialMeta M, opts ...Option) *Store[T, M] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[T, M]{
		dead:        roaring.New(),
		pending:     newPendingTree[T, M](),
		currentMeta: initialMeta,
		opts:        o,
	}
}

// SetMeta replaces the metadata stamped onto subsequent inserts and
// mutations. Existing rows are untouched.
func (s *Store[T, M]) SetMeta(m M) {
	s.currentMeta = m
}

// Meta returns the metadata that new mutations are currently stamped with.
func (s *Store[T, M]) Meta() M {
	return s.currentMeta
}

type slotKind int

const (
	slotFound slotKind = iota
	slotTombstone
	slotPending
	slotInsertBefore
)

func (s *Store[T, M]) searchKeys(id model.ObjectID) (int, bool) {
	return slices.BinarySearchFunc(s.keys, id, func(k, target model.ObjectID) int {
		return k.Compare(target)
	})
}

func (s *Store[T, M]) pendingGet(id model.ObjectID) *pendingEntry[T, M] {
	e, ok := s.pending.Get(&pendingEntry[T, M]{id: id})
	if !ok {
		return nil
	}
	return e
}

// search classifies where id lives. Pending membership is checked before
// tombstone reuse so an id is never live in both tiers at once.
func (s *Store[T, M]) search(id model.ObjectID) (int, slotKind) {
	i, found := s.searchKeys(id)
	if found {
		if s.dead.Contains(uint32(i)) {
			return i, slotTombstone
		}
		return i, slotFound
	}
	if s.pendingGet(id) != nil {
		return i, slotPending
	}
	if i < len(s.keys) && s.dead.Contains(uint32(i)) {
		return i, slotTombstone
	}
	return i, slotInsertBefore
}

// Insert associates value with id, stamping the row with the current
// metadata. Returns the previous value if the id was already live.
//
// The fast paths are updates to live rows, tombstone reuse at the insertion
// point, and appends past the current last key. Anything that would shift
// interior elements is staged until CommitPendingInserts.
func (s *Store[T, M]) Insert(id model.ObjectID, value T) (old T, replaced bool) {
	i, kind := s.search(id)
	switch kind {
	case slotFound:
		old, replaced = s.values[i], true
		s.values[i] = value
		s.meta[i] = s.currentMeta
		s.opts.metrics.RecordInsert(false)

	case slotTombstone:
		// Overwriting the dead slot at the search landing point keeps the
		// keys sorted: the slot's live neighbors already bracket id.
		s.keys[i] = id
		s.values[i] = value
		s.meta[i] = s.currentMeta
		s.dead.Remove(uint32(i))
		s.opts.metrics.RecordInsert(false)

	case slotPending:
		e := s.pendingGet(id)
		old, replaced = e.value, true
		e.value = value
		e.meta = s.currentMeta
		s.opts.metrics.RecordInsert(true)

	default: // slotInsertBefore
		if i == len(s.keys) {
			s.keys = append(s.keys, id)
			s.values = append(s.values, value)
			s.meta = append(s.meta, s.currentMeta)
			s.opts.metrics.RecordInsert(false)
			break
		}
		s.pending.Set(&pendingEntry[T, M]{id: id, value: value, meta: s.currentMeta})
		s.opts.metrics.RecordInsert(true)
	}
	return old, replaced
}

// CommitPendingInserts merges staged inserts into the main columns in
// ascending id order: dead slots at the insertion point are reused first,
// the columns are compacted, then the remainder is positionally inserted
// until the tail becomes append-only. Ids are minted in increasing order per
// run, so in practice nearly everything lands in the bulk append.
func (s *Store[T, M]) CommitPendingInserts() {
	if s.pending.Len() == 0 {
		return
	}

	// Deleting a staged row removes it from the tree outright, so everything
	// still in the tree here is live and must be committed.
	remaining := make([]*pendingEntry[T, M], 0, s.pending.Len())
	s.pending.Scan(func(e *pendingEntry[T, M]) bool {
		i, found := s.searchKeys(e.id)
		if i < len(s.keys) && s.dead.Contains(uint32(i)) {
			s.keys[i] = e.id
			s.values[i] = e.value
			s.meta[i] = e.meta
			s.dead.Remove(uint32(i))
			return true
		}
		if found {
			panic(fmt.Sprintf("entstore: pending insert %s is already live in the committed columns", e.id))
		}
		remaining = append(remaining, e)
		return true
	})
	s.pending = newPendingTree[T, M]()

	s.Compact()

	j := 0
	for ; j < len(remaining); j++ {
		e := remaining[j]
		if n := len(s.keys); n == 0 || s.keys[n-1].Less(e.id) {
			// Everything from here on appends.
			break
		}
		i, found := s.searchKeys(e.id)
		if found {
			panic(fmt.Sprintf("entstore: pending insert %s is already live in the committed columns", e.id))
		}
		s.keys = slices.Insert(s.keys, i, e.id)
		s.values = slices.Insert(s.values, i, e.value)
		s.meta = slices.Insert(s.meta, i, e.meta)
	}
	for ; j < len(remaining); j++ {
		e := remaining[j]
		s.keys = append(s.keys, e.id)
		s.values = append(s.values, e.value)
		s.meta = append(s.meta, e.meta)
	}

	if len(s.keys) != len(s.values) || len(s.values) != len(s.meta) {
		panic("entstore: column length mismatch after commit")
	}
}

// Compact physically removes tombstoned slots, preserving the relative order
// of survivors. Indices into the main columns are invalidated.
func (s *Store[T, M]) Compact() {
	if s.dead.IsEmpty() {
		return
	}
	out := 0
	for i := 0; i < len(s.keys); i++ {
		if s.dead.Contains(uint32(i)) {
			continue
		}
		if out != i {
			s.keys[out] = s.keys[i]
			s.values[out] = s.values[i]
			s.meta[out] = s.meta[i]
		}
		out++
	}
	clear(s.values[out:]) // drop references held by dead rows
	s.keys = s.keys[:out]
	s.values = s.values[:out]
	s.meta = s.meta[:out]
	s.dead.Clear()
}

const shrinkMinCap = 64

// Maintenance commits staged inserts, compacts tombstones, and shrinks
// over-sized backing storage. Call it at a cadence that bounds tombstone and
// pending-insert growth, e.g. once per tick. This is the only operation that
// invalidates indices held by callers.
func (s *Store[T, M]) Maintenance() {
	start := time.Now()
	reclaimed := int(s.dead.GetCardinality())
	s.CommitPendingInserts()
	s.Compact()
	s.shrink()
	s.opts.metrics.RecordMaintenance(time.Since(start), reclaimed)
	s.opts.logger.Debug("store maintenance",
		"live", s.Len(),
		"reclaimed", reclaimed,
		"capacity", cap(s.keys),
	)
}

func (s *Store[T, M]) shrink() {
	if c := cap(s.keys); c <= shrinkMinCap || len(s.keys)*4 >= c {
		return
	}
	s.keys = slices.Clone(s.keys)
	s.values = slices.Clone(s.values)
	s.meta = slices.Clone(s.meta)
}

// GetByID returns a pointer to the live value for id, whether committed or
// still pending. Returns false for dead or absent ids.
func (s *Store[T, M]) GetByID(id model.ObjectID) (*T, bool) {
	i, kind := s.search(id)
	switch kind {
	case slotFound:
		return &s.values[i], true
	case slotPending:
		return &s.pendingGet(id).value, true
	default:
		return nil, false
	}
}

// GetByIDMut returns a write guard for the live row with id. The guard only
// restamps metadata if the value is actually written through it; see Ref.
func (s *Store[T, M]) GetByIDMut(id model.ObjectID) (*Ref[T, M], bool) {
	i, kind := s.search(id)
	switch kind {
	case slotFound:
		return &Ref[T, M]{store: s, id: id, index: i, origin: originMain}, true
	case slotPending:
		return &Ref[T, M]{store: s, id: id, entry: s.pendingGet(id), origin: originPending}, true
	default:
		return nil, false
	}
}

func (s *Store[T, M]) checkIndex(i int) {
	if i < 0 || i >= len(s.keys) {
		panic(fmt.Sprintf("entstore: index %d out of range [0, %d)", i, len(s.keys)))
	}
}

// IndexLen is the length of the main columns, not counting pending inserts.
// Indices in [0, IndexLen()) are valid until the next Maintenance/Compact.
func (s *Store[T, M]) IndexLen() int {
	return len(s.keys)
}

// GetByIndex returns the value at a main-column slot, dead or alive.
// Panics if i is out of range: a stale or foreign index is a bug in the
// caller, not a runtime condition.
func (s *Store[T, M]) GetByIndex(i int) *T {
	s.checkIndex(i)
	return &s.values[i]
}

// GetByIndexMut returns a write guard for the main-column slot i.
func (s *Store[T, M]) GetByIndexMut(i int) *Ref[T, M] {
	s.checkIndex(i)
	return &Ref[T, M]{store: s, id: s.keys[i], index: i, origin: originMain}
}

// IDAtIndex returns the key stored at slot i. For a dead slot this is the
// stale key of the deleted row until the slot is reused or compacted.
func (s *Store[T, M]) IDAtIndex(i int) model.ObjectID {
	s.checkIndex(i)
	return s.keys[i]
}

// IsIndexAlive reports whether slot i holds a live row.
func (s *Store[T, M]) IsIndexAlive(i int) bool {
	s.checkIndex(i)
	return !s.dead.Contains(uint32(i))
}

// DeleteID tombstones the row for id, or removes it outright if it was only
// staged. Returns whether a live row was deleted.
func (s *Store[T, M]) DeleteID(id model.ObjectID) bool {
	i, kind := s.search(id)
	switch kind {
	case slotFound:
		s.dead.Add(uint32(i))
		s.opts.metrics.RecordDelete(true)
		return true
	case slotPending:
		s.pending.Delete(&pendingEntry[T, M]{id: id})
		s.opts.metrics.RecordDelete(true)
		return true
	default:
		s.opts.metrics.RecordDelete(false)
		return false
	}
}

// DeleteIndex tombstones the main-column slot i. Returns whether the slot
// was alive. Panics if i is out of range.
func (s *Store[T, M]) DeleteIndex(i int) bool {
	s.checkIndex(i)
	if s.dead.Contains(uint32(i)) {
		s.opts.metrics.RecordDelete(false)
		return false
	}
	s.dead.Add(uint32(i))
	s.opts.metrics.RecordDelete(true)
	return true
}

// Iter calls fn for every live committed row in ascending id order, skipping
// tombstones and pending inserts. Callers that need staged data must call
// CommitPendingInserts first: iteration is deliberately a stable snapshot of
// committed state. Return false from fn to stop early.
func (s *Store[T, M]) Iter(fn func(i int, id model.ObjectID, v *T) bool) {
	for i := 0; i < len(s.keys); i++ {
		if s.dead.Contains(uint32(i)) {
			continue
		}
		if !fn(i, s.keys[i], &s.values[i]) {
			return
		}
	}
}

// IterMut is Iter with a write guard per row: metadata is restamped only for
// rows actually written through the guard. The guard is only valid for the
// duration of the callback.
func (s *Store[T, M]) IterMut(fn func(i int, id model.ObjectID, ref *Ref[T, M]) bool) {
	for i := 0; i < len(s.keys); i++ {
		if s.dead.Contains(uint32(i)) {
			continue
		}
		ref := Ref[T, M]{store: s, id: s.keys[i], index: i, origin: originMain}
		cont := fn(i, s.keys[i], &ref)
		ref.Release()
		if !cont {
			return
		}
	}
}

// MetaForID returns the metadata of the live row for id.
func (s *Store[T, M]) MetaForID(id model.ObjectID) (M, bool) {
	i, kind := s.search(id)
	switch kind {
	case slotFound:
		return s.meta[i], true
	case slotPending:
		return s.pendingGet(id).meta, true
	default:
		var zero M
		return zero, false
	}
}

// MetaForIndex returns the metadata at slot i, or false if the slot is dead.
func (s *Store[T, M]) MetaForIndex(i int) (M, bool) {
	s.checkIndex(i)
	if s.dead.Contains(uint32(i)) {
		var zero M
		return zero, false
	}
	return s.meta[i], true
}

// Len is the number of live rows, committed and pending.
func (s *Store[T, M]) Len() int {
	return len(s.keys) - int(s.dead.GetCardinality()) + s.pending.Len()
}

// PendingLen is the number of staged inserts awaiting commit.
func (s *Store[T, M]) PendingLen() int {
	return s.pending.Len()
}
