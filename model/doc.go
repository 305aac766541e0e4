// Package model defines core identity types used throughout entstore.
//
// # Identity Types
//
//   - ObjectID: Stable entity identity, a (counter, random) pair ordered by
//     counter first. Counters are strictly positive.
//   - Version: Monotonic change counter used both for garbage-free change
//     detection and for replication recency. Versions are strictly positive;
//     the zero value is invalid and doubles as "no baseline" in the patch
//     APIs.
//
// Both types are plain values: comparable with ==, usable as map keys, and
// cheap to copy.
package model
