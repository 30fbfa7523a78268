package vecgraph

import (
	"context"
	"time"

	"github.com/hupe1980/vecgraph/internal/hnsw"
)

// Record is an id and its vector.
type Record struct {
	ID     uint64
	Vector []float32
}

// InsertBatch inserts records and returns how many ids were new. Ids that
// are already live, or repeated within the batch, are skipped.
//
// Ids are registered sequentially, then the graph links the batch in
// parallel. The graph is left in construction mode: call PrepareForSearch
// once loading is done.
func (ix *Index) InsertBatch(ctx context.Context, records []Record) (int, error) {
	start := time.Now()
	inserted, err := ix.insertBatch(ctx, records)
	ix.opts.metricsCollector.RecordBatchInsert(len(records), inserted, time.Since(start), err)
	ix.logger.LogBatchInsert(ctx, len(records), inserted, err)
	return inserted, err
}

func (ix *Index) insertBatch(ctx context.Context, records []Record) (int, error) {
	for _, r := range records {
		if err := ix.checkVector(r.Vector); err != nil {
			return 0, err
		}
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	ix.writeGate.RLock()
	defer ix.writeGate.RUnlock()
	if ix.closed.Load() {
		return 0, ErrClosed
	}
	st := ix.st

	idxs := make([]hnsw.NodeIndex, 0, len(records))
	vecs := make([][]float32, 0, len(records))
	ids := make([]uint64, 0, len(records))
	for _, r := range records {
		idx, fresh, err := st.ids.Register(r.ID)
		if err != nil {
			ix.unregister(st, ids)
			return 0, err
		}
		if !fresh {
			continue
		}
		idxs = append(idxs, idx)
		vecs = append(vecs, r.Vector)
		ids = append(ids, r.ID)
	}
	if len(idxs) == 0 {
		return 0, nil
	}

	if err := st.graph.InsertBatch(ctx, idxs, vecs); err != nil {
		// Registered ids whose nodes never made it into the graph are dropped;
		// linked ones stay searchable.
		var dropped []uint64
		for i, idx := range idxs {
			if !st.graph.Contains(idx) {
				dropped = append(dropped, ids[i])
			}
		}
		ix.unregister(st, dropped)
		return len(idxs) - len(dropped), translateError(err)
	}

	if st.aux != nil {
		for i, idx := range idxs {
			if err := st.putAux(ids[i], idx, vecs[i]); err != nil {
				return len(idxs), err
			}
		}
	}

	return len(idxs), nil
}

func (ix *Index) unregister(st *state, ids []uint64) {
	for _, id := range ids {
		st.ids.Remove(id)
	}
}
