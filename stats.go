package entstore

// Stats is a point-in-time snapshot of a store's shape. Useful for sizing
// maintenance cadence and for export via StoreCollector.
type Stats struct {
	// Live is the number of live rows, committed and pending.
	Live int
	// MainSlots is the length of the main columns, dead slots included.
	MainSlots int
	// Tombstones is the number of dead slots awaiting compaction or reuse.
	Tombstones int
	// Pending is the number of staged inserts awaiting commit.
	Pending int
	// Capacity is the backing array capacity of the main columns.
	Capacity int
}

// Stats returns a snapshot of the store's current shape.
func (s *Store[T, M]) Stats() Stats {
	return Stats{
		Live:       s.Len(),
		MainSlots:  len(s.keys),
		Tombstones: int(s.dead.GetCardinality()),
		Pending:    s.pending.Len(),
		Capacity:   cap(s.keys),
	}
}
