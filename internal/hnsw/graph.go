package hnsw

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/vecgraph/distance"
	"github.com/hupe1980/vecgraph/internal/vectorstore"
)

// Graph is a concurrently mutable HNSW graph.
type Graph struct {
	opts      Options
	space     distance.Space
	maxConns  int
	maxConns0 int
	levelMult float64

	vectors *vectorstore.Columnar

	layersMu sync.RWMutex
	layers   []*Layer

	// entry packs (level+1)<<32 | node. Zero means the graph is empty.
	entry atomic.Uint64
	// growMu serializes inserts that raise the maximum level.
	growMu sync.Mutex

	nextIdx atomic.Uint32
	count   atomic.Int64
	rng     atomic.Uint64
	mode    atomic.Int32
}

// New creates an empty graph.
func New(optFns ...func(o *Options)) (*Graph, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: opts.Dimension}
	}
	if opts.M < minimumM {
		opts.M = minimumM
	}
	if opts.EFConstruction < opts.M {
		opts.EFConstruction = opts.M
	}
	if opts.MaxElements <= 0 {
		opts.MaxElements = DefaultMaxElements
	}
	if opts.Alpha <= 0 {
		opts.Alpha = DefaultAlpha
	}

	space, err := distance.NewSpace(opts.Metric, opts.Kernel)
	if err != nil {
		return nil, err
	}

	vectors, err := vectorstore.NewColumnar(opts.Dimension, opts.MaxElements, opts.Memory)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		opts:      opts,
		space:     space,
		maxConns:  opts.M,
		maxConns0: mmax0Multiplier * opts.M,
		levelMult: 1 / math.Log(float64(opts.M)),
		vectors:   vectors,
		layers:    []*Layer{newLayer(0, opts.MaxElements)},
	}
	g.rng.Store(initialSeed(opts.Seed))
	return g, nil
}

// Options returns the effective options.
func (g *Graph) Options() Options { return g.opts }

// Dimension returns the vector dimensionality.
func (g *Graph) Dimension() int { return g.opts.Dimension }

// Space returns the metric space used for all distances.
func (g *Graph) Space() distance.Space { return g.space }

// Len returns the number of fully linked nodes.
func (g *Graph) Len() int { return int(g.count.Load()) }

// NextIndex returns one past the highest index ever inserted.
func (g *Graph) NextIndex() uint32 { return g.nextIdx.Load() }

// Mode returns the current pruning mode.
func (g *Graph) Mode() Mode { return Mode(g.mode.Load()) }

// SetMode switches the pruning mode. Switching to ModeSearch does not
// shrink existing lists; use PrepareForSearch for that.
func (g *Graph) SetMode(m Mode) { g.mode.Store(int32(m)) }

// EntryPoint returns the entry node and the maximum level.
func (g *Graph) EntryPoint() (NodeIndex, int, bool) {
	return unpackEntry(g.entry.Load())
}

// MaxLayer returns the maximum level, or -1 for an empty graph.
func (g *Graph) MaxLayer() int {
	_, level, ok := g.EntryPoint()
	if !ok {
		return -1
	}
	return level
}

func packEntry(node NodeIndex, level int) uint64 {
	return uint64(level+1)<<32 | uint64(node)
}

func unpackEntry(v uint64) (NodeIndex, int, bool) {
	if v == 0 {
		return 0, -1, false
	}
	return NodeIndex(v), int(v>>32) - 1, true
}

// Vector returns the stored (metric-prepared) vector of an inserted node.
func (g *Graph) Vector(idx NodeIndex) ([]float32, bool) {
	if !g.layer(0).Has(idx) {
		return nil, false
	}
	return g.vectors.Vector(idx)
}

// Contains reports whether idx was inserted.
func (g *Graph) Contains(idx NodeIndex) bool {
	return g.layer(0).Has(idx)
}

// Layer returns the layer at level, or nil.
func (g *Graph) Layer(level int) *Layer {
	return g.layer(level)
}

func (g *Graph) layer(level int) *Layer {
	g.layersMu.RLock()
	defer g.layersMu.RUnlock()
	if level < 0 || level >= len(g.layers) {
		return nil
	}
	return g.layers[level]
}

func (g *Graph) numLayers() int {
	g.layersMu.RLock()
	defer g.layersMu.RUnlock()
	return len(g.layers)
}

// assignLevels grows the layer set to level and adds node to layers 0..level.
func (g *Graph) assignLevels(node NodeIndex, level int) error {
	g.layersMu.Lock()
	for len(g.layers) <= level {
		g.layers = append(g.layers, newLayer(len(g.layers), 16))
	}
	layers := g.layers[:level+1]
	g.layersMu.Unlock()

	for _, l := range layers {
		if !l.Add(node) {
			return ErrNodeExists
		}
	}
	return nil
}

// levelOf returns the highest layer containing node.
func (g *Graph) levelOf(node NodeIndex) int {
	level := -1
	for l := 0; l < g.numLayers(); l++ {
		if !g.layer(l).Has(node) {
			break
		}
		level = l
	}
	return level
}

// capFor returns the neighbor cap at level.
func (g *Graph) capFor(level int) int {
	if level == 0 {
		return g.maxConns0
	}
	return g.maxConns
}

// distanceTo computes the distance from a prepared query to a stored node.
func (g *Graph) distanceTo(query []float32, node NodeIndex) (float32, bool) {
	v, ok := g.vectors.Vector(node)
	if !ok {
		return math.MaxFloat32, false
	}
	return g.space.Distance(query, v), true
}

// raiseNext makes sure nextIdx > idx.
func (g *Graph) raiseNext(idx NodeIndex) {
	for {
		cur := g.nextIdx.Load()
		if cur > idx || g.nextIdx.CompareAndSwap(cur, idx+1) {
			return
		}
	}
}

// Close releases the vector memory reservation.
func (g *Graph) Close() error {
	return g.vectors.Close()
}
