package entstore

import (
	"github.com/hupe1980/entstore/model"
)

type refOrigin int

const (
	originMain refOrigin = iota
	originPending
)

// Ref is a scoped write guard over a single row.
//
// Reads go through Peek and do not touch metadata. Writes go through Value or
// Set, which mark the guard dirty; on Release a dirty guard restamps the row
// with the store's current metadata. A row that was deleted between guard
// acquisition and Release is never resurrected: the delete wins and no stamp
// happens.
//
// A Ref is only valid until the next Maintenance/Compact on its store, and at
// most one guard per row may be outstanding at a time. Both are caller
// contracts; the store is single-owner by design.
type Ref[T any, M any] struct {
	store    *Store[T, M]
	id       model.ObjectID
	index    int
	entry    *pendingEntry[T, M]
	origin   refOrigin
	dirty    bool
	released bool
}

// ID returns the id of the guarded row.
func (r *Ref[T, M]) ID() model.ObjectID {
	return r.id
}

// Peek returns the value for reading. The guard stays clean.
func (r *Ref[T, M]) Peek() *T {
	if r.origin == originPending {
		return &r.entry.value
	}
	return &r.store.values[r.index]
}

// Value returns the value for writing and marks the guard dirty.
func (r *Ref[T, M]) Value() *T {
	r.dirty = true
	return r.Peek()
}

// Set replaces the value and marks the guard dirty.
func (r *Ref[T, M]) Set(v T) {
	r.dirty = true
	*r.Peek() = v
}

// Release ends the guard's scope. If the guard is dirty and the row is still
// alive where the guard found it, the row is restamped with the store's
// current metadata. Release is idempotent.
func (r *Ref[T, M]) Release() {
	if r.released {
		return
	}
	r.released = true
	if !r.dirty {
		return
	}

	s := r.store
	switch r.origin {
	case originMain:
		if r.index >= len(s.keys) || s.keys[r.index] != r.id {
			return // stale guard held across maintenance
		}
		if s.dead.Contains(uint32(r.index)) {
			return // deleted mid-guard, the delete wins
		}
		s.meta[r.index] = s.currentMeta
	case originPending:
		// A nil or different entry means the row was deleted (or committed
		// and recreated) since the guard was taken; the guard must not stamp.
		e := s.pendingGet(r.id)
		if e == nil || e != r.entry {
			return
		}
		e.meta = s.currentMeta
	}
}
