package hnsw

import (
	"math"

	"github.com/hupe1980/vecgraph/internal/searcher"
)

// Insert appends vec under a freshly allocated index.
func (g *Graph) Insert(vec []float32) (NodeIndex, error) {
	if err := g.checkDimension(vec); err != nil {
		return 0, err
	}
	idx := g.nextIdx.Add(1) - 1
	return idx, g.InsertAt(idx, vec)
}

// InsertAt inserts vec under a caller-allocated index. Each index may be
// inserted once.
func (g *Graph) InsertAt(idx NodeIndex, vec []float32) error {
	level, err := g.place(idx, vec)
	if err != nil {
		return err
	}
	stored, _ := g.vectors.Vector(idx)
	g.link(idx, stored, level)
	g.count.Add(1)
	return nil
}

// place stores the vector and assigns the node to its layers. The node is
// not reachable until link runs.
func (g *Graph) place(idx NodeIndex, vec []float32) (int, error) {
	if err := g.checkDimension(vec); err != nil {
		return 0, err
	}
	if idx == math.MaxUint32 {
		return 0, ErrIndexExhausted
	}
	if g.Contains(idx) {
		return 0, ErrNodeExists
	}
	g.raiseNext(idx)

	if err := g.vectors.Set(idx, g.space.Prepare(vec)); err != nil {
		return 0, err
	}
	level := g.randomLevel()
	if err := g.assignLevels(idx, level); err != nil {
		return 0, err
	}
	return level, nil
}

func (g *Graph) checkDimension(vec []float32) error {
	if len(vec) != g.opts.Dimension {
		return &ErrDimensionMismatch{Expected: g.opts.Dimension, Actual: len(vec)}
	}
	return nil
}

// link connects an already placed node into the graph.
func (g *Graph) link(idx NodeIndex, vec []float32, level int) {
	ep, maxLevel, ok := g.EntryPoint()
	if !ok || level > maxLevel {
		g.growMu.Lock()
		defer g.growMu.Unlock()

		ep, maxLevel, ok = g.EntryPoint()
		if !ok {
			g.entry.Store(packEntry(idx, level))
			return
		}
	}

	cur := ep
	curDist, _ := g.distanceTo(vec, cur)

	// 1. Greedy descent through the levels above the node's level.
	for l := maxLevel; l > level; l-- {
		cur, curDist = g.greedyClosest(vec, cur, curDist, l)
	}

	s := searcher.Get()
	defer searcher.Put(s)

	// 2. Beam search and connect from the node's level down to 0.
	for l := min(level, maxLevel); l >= 0; l-- {
		candidates := g.searchLayer(s, vec, []searcher.Item{{Node: cur, Distance: curDist}}, l, g.opts.EFConstruction, nil)
		candidates = withoutNode(candidates, idx)
		if len(candidates) == 0 {
			continue
		}
		cur, curDist = candidates[0].Node, candidates[0].Distance

		selected := g.selectNeighbors(candidates, g.capFor(l))
		layer := g.layer(l)
		g.linkForward(layer, idx, selected)
		for _, n := range selected {
			g.addBackEdge(layer, n.Node, Neighbor{Node: idx, Dist: n.Dist})
		}
	}

	if level > maxLevel {
		g.entry.Store(packEntry(idx, level))
	}
}

func withoutNode(items []searcher.Item, node NodeIndex) []searcher.Item {
	for i, it := range items {
		if it.Node == node {
			return append(items[:i], items[i+1:]...)
		}
	}
	return items
}
