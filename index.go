package vecgraph

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/vecgraph/distance"
	"github.com/hupe1980/vecgraph/internal/hnsw"
	"github.com/hupe1980/vecgraph/internal/idmap"
	"github.com/hupe1980/vecgraph/internal/vectorstore"
)

// state is one generation of the index. Vacuum and Load replace it as a
// unit, so a reader holding a *state always sees a consistent graph, mapping
// and auxiliary store.
type state struct {
	graph *hnsw.Graph
	ids   *idmap.Mapping
	aux   *vectorstore.Aux // nil when auxiliary vectors are disabled
}

// Index is an approximate nearest-neighbor index over uint64 ids.
//
// All methods are safe for concurrent use. Writers share a gate that
// Vacuum, Save and Close take exclusively; searches never wait on it.
type Index struct {
	dim    int
	metric distance.Metric
	space  distance.Space
	opts   options
	logger *Logger

	writeGate sync.RWMutex

	stateMu sync.RWMutex
	st      *state

	vacuuming atomic.Bool
	closed    atomic.Bool
}

// New creates an empty index for vectors of the given dimension.
func New(dimension int, metric distance.Metric, opts ...Option) (*Index, error) {
	ix, err := newIndex(dimension, metric, opts)
	if err != nil {
		return nil, err
	}
	st, err := ix.newState()
	if err != nil {
		return nil, err
	}
	ix.st = st
	return ix, nil
}

// newIndex validates the parameters and returns an index without state.
func newIndex(dimension int, metric distance.Metric, opts []Option) (*Index, error) {
	if dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dimension}
	}

	o := applyOptions(opts)
	space, err := distance.NewSpace(metric, o.kernel)
	if err != nil {
		return nil, err
	}

	return &Index{
		dim:    dimension,
		metric: metric,
		space:  space,
		opts:   o,
		logger: &Logger{Logger: o.logger.WithDimension(dimension).With("metric", metric.String())},
	}, nil
}

func (ix *Index) graphOptions(o *hnsw.Options) {
	o.Dimension = ix.dim
	o.Metric = ix.metric
	o.M = ix.opts.m
	o.EFConstruction = ix.opts.efConstruction
	o.MaxElements = ix.opts.maxElements
	o.Alpha = ix.opts.alpha
	o.Kernel = ix.opts.kernel
	o.Seed = ix.opts.seed
	if ix.opts.resources != nil {
		o.Memory = ix.opts.resources
	}
}

func (ix *Index) newState() (*state, error) {
	g, err := hnsw.New(ix.graphOptions)
	if err != nil {
		return nil, translateError(err)
	}
	return &state{graph: g, ids: idmap.New(), aux: ix.newAux()}, nil
}

func (ix *Index) newAux() *vectorstore.Aux {
	if !ix.opts.auxVectors {
		return nil
	}
	if ix.opts.resources != nil {
		return vectorstore.NewAux(ix.dim, ix.opts.resources)
	}
	return vectorstore.NewAux(ix.dim, nil)
}

func (ix *Index) state() *state {
	ix.stateMu.RLock()
	defer ix.stateMu.RUnlock()
	return ix.st
}

func (ix *Index) swapState(next *state) *state {
	ix.stateMu.Lock()
	defer ix.stateMu.Unlock()
	prev := ix.st
	ix.st = next
	return prev
}

func (ix *Index) checkVector(v []float32) error {
	if ix.closed.Load() {
		return ErrClosed
	}
	if len(v) != ix.dim {
		return &ErrDimensionMismatch{Expected: ix.dim, Actual: len(v)}
	}
	return nil
}

// Dimension returns the vector dimension.
func (ix *Index) Dimension() int { return ix.dim }

// Metric returns the distance metric.
func (ix *Index) Metric() distance.Metric { return ix.metric }

// Len returns the number of live ids.
func (ix *Index) Len() int { return ix.state().ids.Len() }

// Contains reports whether id is live.
func (ix *Index) Contains(id uint64) bool { return ix.state().ids.Contains(id) }

// Vector returns the vector stored for id. Without auxiliary vectors or a
// vector source the graph's copy is returned, which is L2-normalized for
// the cosine metric.
func (ix *Index) Vector(id uint64) ([]float32, bool) {
	st := ix.state()
	idx, ok := st.ids.Index(id)
	if !ok {
		return nil, false
	}
	v, ok := ix.vectorAt(st, id, idx)
	if !ok {
		return nil, false
	}
	return append([]float32(nil), v...), true
}

// hasRawVectors reports whether exact paths can read unprepared vectors.
func (ix *Index) hasRawVectors(st *state) bool {
	return st.aux != nil || ix.opts.source != nil
}

func (ix *Index) rawVector(st *state, id uint64, idx uint32) ([]float32, bool) {
	if st.aux != nil {
		if v, ok := st.aux.Vector(idx); ok {
			return v, true
		}
	}
	if ix.opts.source != nil {
		return ix.opts.source.Vector(id)
	}
	return nil, false
}

// vectorAt falls back to the graph's prepared copy.
func (ix *Index) vectorAt(st *state, id uint64, idx uint32) ([]float32, bool) {
	if v, ok := ix.rawVector(st, id, idx); ok {
		return v, true
	}
	return st.graph.Vector(idx)
}

// Insert adds vector under id. Inserting an id that is already live is a
// no-op: the first vector stays.
func (ix *Index) Insert(ctx context.Context, id uint64, vector []float32) error {
	start := time.Now()
	_, err := ix.insert(ctx, id, vector)
	ix.opts.metricsCollector.RecordInsert(time.Since(start), err)
	return err
}

func (ix *Index) insert(ctx context.Context, id uint64, vector []float32) (bool, error) {
	if err := ix.checkVector(vector); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	ix.writeGate.RLock()
	defer ix.writeGate.RUnlock()
	if ix.closed.Load() {
		return false, ErrClosed
	}
	st := ix.st

	idx, fresh, err := st.ids.Register(id)
	if err != nil {
		ix.logger.LogInsert(ctx, id, false, err)
		return false, err
	}
	if !fresh {
		ix.logger.LogInsert(ctx, id, false, nil)
		return false, nil
	}

	if err := st.graph.InsertAt(idx, vector); err != nil {
		st.ids.Remove(id)
		err = translateError(err)
		ix.logger.LogInsert(ctx, id, false, err)
		return false, err
	}
	if st.aux != nil {
		if err := st.putAux(id, idx, vector); err != nil {
			// The node is linked; keep the id searchable and report the
			// missing exact copy.
			ix.logger.LogInsert(ctx, id, true, err)
			return true, err
		}
	}

	ix.logger.LogInsert(ctx, id, true, nil)
	return true, nil
}

// putAux stores the raw copy of vector for idx. A Remove of id that ran
// between registration and the store finds nothing to delete, so the entry
// is dropped again once idx no longer maps to id.
func (st *state) putAux(id uint64, idx uint32, vector []float32) error {
	if err := st.aux.Put(idx, vector); err != nil {
		return err
	}
	if cur, ok := st.ids.ID(idx); !ok || cur != id {
		st.aux.Delete(idx)
	}
	return nil
}

// Remove tombstones id. Its node stays in the graph until the next Vacuum
// but never appears in results again.
func (ix *Index) Remove(ctx context.Context, id uint64) bool {
	if ix.closed.Load() {
		return false
	}
	start := time.Now()

	ix.writeGate.RLock()
	st := ix.st
	idx, found := st.ids.Remove(id)
	if found && st.aux != nil {
		st.aux.Delete(idx)
	}
	ix.writeGate.RUnlock()

	ix.logger.LogRemove(ctx, id, found)
	ix.opts.metricsCollector.RecordRemove(found, time.Since(start))
	return found
}

// TombstoneCount returns the number of removed ids whose nodes are still in
// the graph.
func (ix *Index) TombstoneCount() int { return ix.state().ids.Tombstones() }

// TombstoneRatio returns tombstones divided by all allocated indices.
func (ix *Index) TombstoneRatio() float64 {
	st := ix.state()
	next := st.ids.Next()
	if next == 0 {
		return 0
	}
	return float64(st.ids.Tombstones()) / float64(next)
}

// NeedsVacuum reports whether the tombstone ratio exceeds the configured
// threshold.
func (ix *Index) NeedsVacuum() bool {
	return ix.TombstoneRatio() > ix.opts.vacuumThreshold
}

// PrepareForSearch finishes a bulk load: over-full neighbor lists are pruned
// and the graph switches back to search mode.
func (ix *Index) PrepareForSearch(ctx context.Context) error {
	if ix.closed.Load() {
		return ErrClosed
	}
	ix.writeGate.RLock()
	defer ix.writeGate.RUnlock()
	return ix.st.graph.PrepareForSearch(ctx)
}

// Close releases the index. Searches already running finish against the
// released state; later calls return ErrClosed.
func (ix *Index) Close() error {
	if !ix.closed.CompareAndSwap(false, true) {
		return nil
	}

	ix.writeGate.Lock()
	defer ix.writeGate.Unlock()

	st := ix.state()
	if st.aux != nil {
		st.aux.Clear()
	}
	return st.graph.Close()
}

// LevelStats describes one graph layer.
type LevelStats struct {
	Level     int
	Nodes     int
	Edges     int
	AvgDegree float64
}

// Stats describes the index.
type Stats struct {
	Live           int
	Tombstones     int
	TombstoneRatio float64
	GraphNodes     int
	MaxLevel       int
	EntryPoint     uint32
	SearchReady    bool
	AuxVectors     int
	MemoryBytes    int64
	Parameters     map[string]string
	Levels         []LevelStats
}

// Stats returns a snapshot of index statistics.
func (ix *Index) Stats() Stats {
	st := ix.state()
	gs := st.graph.Stats()

	s := Stats{
		Live:        st.ids.Len(),
		Tombstones:  st.ids.Tombstones(),
		GraphNodes:  gs.Nodes,
		MaxLevel:    gs.MaxLevel,
		EntryPoint:  gs.EntryPoint,
		SearchReady: gs.Mode == hnsw.ModeSearch,
		MemoryBytes: ix.opts.resources.MemoryUsage(),
		Parameters:  gs.Parameters,
		Levels:      make([]LevelStats, len(gs.Levels)),
	}
	if next := st.ids.Next(); next > 0 {
		s.TombstoneRatio = float64(s.Tombstones) / float64(next)
	}
	if st.aux != nil {
		s.AuxVectors = st.aux.Len()
	}
	for i, l := range gs.Levels {
		s.Levels[i] = LevelStats(l)
	}
	return s
}
