package model

import (
	"fmt"
	"math"
)

// Version is a monotonically increasing change counter.
//
// Versions tag "when a row last changed" and decide replication recency:
// a patch entry only wins over existing state if its version is strictly
// greater. Valid versions are strictly positive; the zero value is invalid
// and is used by the patch APIs to mean "no baseline".
//
// All entities are considered changed at process start, so stores typically
// begin life at MinVersion and the tick runner advances from there.
type Version uint64

const (
	// MinVersion is the version less than all other valid versions.
	MinVersion Version = 1
	// MaxVersion is the maximum version ever allowed.
	MaxVersion Version = math.MaxUint64
)

// Valid reports whether v is a usable version (nonzero).
func (v Version) Valid() bool {
	return v > 0
}

// Advance returns the version n steps after v.
//
// Panics on overflow past MaxVersion. Hitting the maximum version is a bug in
// the caller, not a runtime condition: at one version per nanosecond it takes
// centuries to get there.
func (v Version) Advance(n uint64) Version {
	next := v + Version(n)
	if next < v {
		panic(fmt.Sprintf("entstore/model: version overflow advancing %s by %d", v, n))
	}
	return next
}

// Next returns the version immediately after v.
func (v Version) Next() Version {
	return v.Advance(1)
}

// Before reports whether v is strictly older than other.
func (v Version) Before(other Version) bool { return v < other }

// After reports whether v is strictly newer than other.
func (v Version) After(other Version) bool { return v > other }

// String returns "v<n>".
func (v Version) String() string {
	return fmt.Sprintf("v%d", uint64(v))
}
