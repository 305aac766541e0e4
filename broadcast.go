package entstore

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/entstore/model"
)

// PeerView describes what one connected peer already has and is allowed to
// see: its last-acknowledged baseline version and its visibility predicate.
type PeerView struct {
	Baseline model.Version
	Visible  Predicate
}

// ExtractAll extracts one patch per peer from a single prepared builder,
// fanning the extractions out across goroutines. A builder is immutable
// after Prepare, so concurrent extraction needs no locking.
//
// The returned slice is parallel to peers. Extraction stops early if ctx is
// cancelled.
func ExtractAll(ctx context.Context, b *PatchBuilder, peers []PeerView) ([]*Patch, error) {
	patches := make([]*Patch, len(peers))

	g, ctx := errgroup.WithContext(ctx)
	for i, peer := range peers {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			patches[i] = b.ExtractPatch(peer.Baseline, peer.Visible)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return patches, nil
}
