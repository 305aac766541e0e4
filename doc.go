// Package entstore provides the entity/component storage engine for a
// multiplayer game simulation: a versioned, compacting, append-friendly
// column store plus the machinery to diff and patch stores across a network
// boundary.
//
// # Store
//
// A Store holds per-component data for many thousands of short-lived,
// frequently mutated game objects, keyed by model.ObjectID and stamped with
// per-row metadata (typically the tick's model.Version):
//
//	store := entstore.New[Position, model.Version](model.MinVersion)
//
//	// each tick:
//	store.SetMeta(tickVersion)
//	store.Insert(id, pos)
//	if ref, ok := store.GetByIDMut(id); ok {
//	    ref.Value().X += dx // marks the row changed at tickVersion
//	    ref.Release()
//	}
//	store.Maintenance() // fold in staged inserts, reclaim tombstones
//
// Metadata only changes when a value actually changes, which makes version
// comparison a garbage-free change detector.
//
// # Replication
//
// At tick end the server serializes every changed row once, then slices out
// per-peer patches without re-serializing:
//
//	builder, _ := entstore.Prepare(store, lastBroadcastVersion, nil)
//	for _, peer := range peers {
//	    patch := builder.ExtractPatch(peer.Acked, peer.Visible)
//	    // send patch, or wire.EncodePatch(patch) across the network
//	}
//
// On the receiving side, Apply merges a patch into a replica store. Per-row
// versions decide recency, so stale patches never overwrite newer state and
// re-applying a patch is a no-op.
//
// # Ownership
//
// Stores and patch types are plain synchronous data structures with no
// internal locking: each store is owned by one logical execution context at
// a time. The one sanctioned form of sharing is concurrent ExtractPatch
// calls on a prepared builder, which is immutable.
package entstore
