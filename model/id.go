package model

import (
	"fmt"
)

// ObjectID is the stable identity of an entity.
//
// An id is a 64-bit counter paired with a 64-bit random value. The counter is
// expected to increase over time within one producer (in production it is
// derived from a nanosecond clock, see the mint package), which keeps freshly
// minted ids append-friendly for the store. The random half breaks ties
// between producers and doubles as a low-quality uuid.
//
// The zero ObjectID is not a valid id: counters must be nonzero.
type ObjectID struct {
	Counter uint64
	Random  uint64
}

// NewObjectID creates an id from its two halves.
//
// Panics if counter is zero; a zero counter is reserved for the zero value.
func NewObjectID(counter, random uint64) ObjectID {
	if counter == 0 {
		panic("entstore/model: ObjectID counter must not be zero")
	}
	return ObjectID{Counter: counter, Random: random}
}

// TestingID creates an id with the given counter and a zero random half.
// Intended for tests, where predictable ordering matters more than
// uniqueness.
func TestingID(counter uint64) ObjectID {
	return NewObjectID(counter, 0)
}

// IsZero reports whether the id is the (invalid) zero value.
func (id ObjectID) IsZero() bool {
	return id.Counter == 0 && id.Random == 0
}

// Less reports whether id orders strictly before other.
// Ordering is by counter first, then by the random half.
func (id ObjectID) Less(other ObjectID) bool {
	if id.Counter != other.Counter {
		return id.Counter < other.Counter
	}
	return id.Random < other.Random
}

// Compare returns -1, 0, or 1 depending on whether id orders before, equal
// to, or after other.
func (id ObjectID) Compare(other ObjectID) int {
	switch {
	case id.Counter < other.Counter:
		return -1
	case id.Counter > other.Counter:
		return 1
	case id.Random < other.Random:
		return -1
	case id.Random > other.Random:
		return 1
	default:
		return 0
	}
}

// String returns a compact representation of the id.
func (id ObjectID) String() string {
	return fmt.Sprintf("oid(%d:%016x)", id.Counter, id.Random)
}
