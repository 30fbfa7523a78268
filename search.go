package vecgraph

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/hupe1980/vecgraph/internal/hnsw"
	"github.com/hupe1980/vecgraph/internal/searcher"
)

// SearchResult is one hit. Score is metric-oriented: for cosine and dot
// product higher is better, for Euclidean and Manhattan it equals Distance
// and lower is better. Results are always ordered best first.
type SearchResult struct {
	ID       uint64
	Score    float32
	Distance float32
}

// FilterFunc restricts results to ids for which it returns true. Rejected
// ids are still traversed by the graph search.
type FilterFunc func(id uint64) bool

type searchRequest struct {
	k       int
	quality Quality
	probes  int
	filter  FilterFunc
}

// Search returns the k nearest ids to query at QualityBalanced.
func (ix *Index) Search(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	return ix.SearchWithQuality(ctx, query, k, QualityBalanced)
}

// SearchWithQuality returns the k nearest ids to query using the beam width
// of quality. Small collections are always scanned exhaustively.
func (ix *Index) SearchWithQuality(ctx context.Context, query []float32, k int, quality Quality) ([]SearchResult, error) {
	return ix.search(ctx, query, searchRequest{k: k, quality: quality, probes: 1})
}

// SearchMultiEntry is SearchWithQuality seeded from probes entry points,
// which helps on graphs with poorly connected regions.
func (ix *Index) SearchMultiEntry(ctx context.Context, query []float32, k int, quality Quality, probes int) ([]SearchResult, error) {
	return ix.search(ctx, query, searchRequest{k: k, quality: quality, probes: max(probes, 1)})
}

// SearchFiltered is SearchWithQuality restricted to ids accepted by filter.
func (ix *Index) SearchFiltered(ctx context.Context, query []float32, k int, quality Quality, filter FilterFunc) ([]SearchResult, error) {
	return ix.search(ctx, query, searchRequest{k: k, quality: quality, probes: 1, filter: filter})
}

func (ix *Index) validateQuery(query []float32, k int) error {
	if err := ix.checkVector(query); err != nil {
		return err
	}
	if k <= 0 {
		return ErrInvalidK
	}
	return nil
}

func (ix *Index) search(ctx context.Context, query []float32, req searchRequest) (res []SearchResult, err error) {
	start := time.Now()
	exact := false
	ef := 0
	defer func() {
		ix.opts.metricsCollector.RecordSearch(req.k, exact, time.Since(start), err)
		ix.logger.LogSearch(ctx, req.k, ef, len(res), exact, err)
	}()

	if err = ix.validateQuery(query, req.k); err != nil {
		return nil, err
	}
	if err = req.quality.validate(); err != nil {
		return nil, err
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	st := ix.state()
	if ix.useExact(st, req.quality) {
		exact = true
		return ix.exactScan(ctx, st, query, req.k, req.filter)
	}

	ef = req.quality.EF(req.k)
	hits, err := st.graph.SearchMultiEntry(query, req.k, ef, req.probes, ix.accept(st, req.filter))
	if err != nil {
		return nil, translateError(err)
	}
	return ix.toResults(st, hits), nil
}

// useExact decides whether a query bypasses the graph.
func (ix *Index) useExact(st *state, q Quality) bool {
	if q.Exact() {
		return true
	}
	return ix.opts.exactScanThreshold > 0 &&
		st.ids.Len() <= ix.opts.exactScanThreshold &&
		ix.hasRawVectors(st)
}

// accept admits live nodes only; tombstoned indices no longer resolve.
func (ix *Index) accept(st *state, filter FilterFunc) hnsw.AcceptFunc {
	if filter == nil {
		return func(idx hnsw.NodeIndex) bool {
			_, ok := st.ids.ID(idx)
			return ok
		}
	}
	return func(idx hnsw.NodeIndex) bool {
		id, ok := st.ids.ID(idx)
		return ok && filter(id)
	}
}

func (ix *Index) toResults(st *state, hits []hnsw.SearchResult) []SearchResult {
	res := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		id, ok := st.ids.ID(h.Node)
		if !ok {
			// Removed after the traversal admitted it.
			continue
		}
		res = append(res, SearchResult{ID: id, Score: ix.space.Score(h.Distance), Distance: h.Distance})
	}
	return res
}

// exactScan ranks every live vector. It reads raw vectors when available and
// the graph's prepared copies otherwise.
func (ix *Index) exactScan(ctx context.Context, st *state, query []float32, k int, filter FilterFunc) ([]SearchResult, error) {
	q := ix.space.Prepare(query)
	pq := searcher.NewPriorityQueue(true)
	ids := make(map[uint32]uint64, k)

	n := 0
	for id, idx := range st.ids.Live() {
		if n++; n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if filter != nil && !filter(id) {
			continue
		}
		v, ok := ix.vectorAt(st, id, idx)
		if !ok {
			continue
		}
		d := ix.space.Distance(q, ix.space.Prepare(v))
		if pq.PushBounded(searcher.Item{Node: idx, Distance: d}, k) {
			ids[idx] = id
		}
	}

	items := pq.DrainAscending(make([]searcher.Item, 0, pq.Len()))
	res := make([]SearchResult, len(items))
	for i, it := range items {
		res[i] = SearchResult{ID: ids[it.Node], Score: ix.space.Score(it.Distance), Distance: it.Distance}
	}
	sortResults(res)
	return res, nil
}

// SearchWithRerank fetches rerankK approximate candidates, recomputes their
// exact distances from the raw vectors and returns the best k of them.
// rerankK below k is raised to k.
func (ix *Index) SearchWithRerank(ctx context.Context, query []float32, k, rerankK int) (res []SearchResult, err error) {
	start := time.Now()
	exact := false
	rerankK = max(rerankK, k)
	ef := QualityBalanced.EF(rerankK)
	defer func() {
		ix.opts.metricsCollector.RecordSearch(k, exact, time.Since(start), err)
		ix.logger.LogSearch(ctx, k, ef, len(res), exact, err)
	}()

	if err = ix.validateQuery(query, k); err != nil {
		return nil, err
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	st := ix.state()
	if ix.useExact(st, QualityBalanced) {
		exact = true
		return ix.exactScan(ctx, st, query, k, nil)
	}

	hits, err := st.graph.Search(query, rerankK, ef, ix.accept(st, nil))
	if err != nil {
		return nil, translateError(err)
	}

	q := ix.space.Prepare(query)
	res = make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		id, ok := st.ids.ID(h.Node)
		if !ok {
			continue
		}
		d := h.Distance
		if v, ok := ix.rawVector(st, id, h.Node); ok {
			d = ix.space.Distance(q, ix.space.Prepare(v))
		}
		res = append(res, SearchResult{ID: id, Score: ix.space.Score(d), Distance: d})
	}
	sortResults(res)
	if len(res) > k {
		res = res[:k]
	}
	return res, nil
}

// sortResults orders by distance, breaking ties by id.
func sortResults(res []SearchResult) {
	slices.SortFunc(res, func(a, b SearchResult) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
