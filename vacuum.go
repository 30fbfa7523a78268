package vecgraph

import (
	"context"
	"time"

	"github.com/hupe1980/vecgraph/internal/hnsw"
)

// Vacuum rebuilds the index from its live vectors, dropping every tombstone.
// It returns the number of vectors in the rebuilt index.
//
// The new graph, mapping and auxiliary store are built completely before
// they replace the current ones in a single step. Searches keep running
// against the old generation meanwhile; writers wait until the swap.
func (ix *Index) Vacuum(ctx context.Context) (int, error) {
	start := time.Now()
	live, reclaimed, err := ix.vacuum(ctx)
	ix.opts.metricsCollector.RecordVacuum(reclaimed, time.Since(start), err)
	ix.logger.LogVacuum(ctx, live, reclaimed, err)
	return live, err
}

// VacuumIfNeeded runs Vacuum when NeedsVacuum reports true. It returns
// whether a rebuild ran.
func (ix *Index) VacuumIfNeeded(ctx context.Context) (bool, error) {
	if !ix.NeedsVacuum() {
		return false, nil
	}
	if _, err := ix.Vacuum(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (ix *Index) vacuum(ctx context.Context) (int, int, error) {
	if ix.closed.Load() {
		return 0, 0, ErrClosed
	}
	if !ix.vacuuming.CompareAndSwap(false, true) {
		return 0, 0, ErrVacuumInProgress
	}
	defer ix.vacuuming.Store(false)

	rc := ix.opts.resources
	if err := rc.AcquireBackground(ctx); err != nil {
		return 0, 0, err
	}
	defer rc.ReleaseBackground()

	ix.writeGate.Lock()
	defer ix.writeGate.Unlock()
	if ix.closed.Load() {
		return 0, 0, ErrClosed
	}

	old := ix.st
	if !ix.hasRawVectors(old) {
		return 0, 0, ErrVectorsUnavailable
	}

	var (
		ids  []uint64
		vecs [][]float32
	)
	for id, idx := range old.ids.Live() {
		v, ok := ix.rawVector(old, id, idx)
		if !ok {
			continue
		}
		ids = append(ids, id)
		vecs = append(vecs, v)
	}

	next, err := ix.buildState(ctx, ids, vecs)
	if err != nil {
		return 0, 0, err
	}

	reclaimed := old.ids.Tombstones() + old.ids.Len() - next.ids.Len()
	ix.swapState(next)

	if old.aux != nil {
		old.aux.Clear()
	}
	if err := old.graph.Close(); err != nil {
		ix.logger.WarnContext(ctx, "release previous graph", "error", err)
	}

	return next.ids.Len(), reclaimed, nil
}

// buildState creates a fresh generation holding ids and vecs, ready for
// search.
func (ix *Index) buildState(ctx context.Context, ids []uint64, vecs [][]float32) (*state, error) {
	next, err := ix.newState()
	if err != nil {
		return nil, err
	}

	idxs := make([]hnsw.NodeIndex, len(ids))
	for i, id := range ids {
		idx, _, err := next.ids.Register(id)
		if err != nil {
			next.graph.Close()
			return nil, err
		}
		idxs[i] = idx
	}

	if len(idxs) > 0 {
		if err := next.graph.InsertBatch(ctx, idxs, vecs); err != nil {
			next.graph.Close()
			return nil, translateError(err)
		}
		if err := next.graph.PrepareForSearch(ctx); err != nil {
			next.graph.Close()
			return nil, err
		}
	}

	if next.aux != nil {
		for i, idx := range idxs {
			if err := next.aux.Put(idx, vecs[i]); err != nil {
				next.aux.Clear()
				next.graph.Close()
				return nil, err
			}
		}
	}

	return next, nil
}
