package hnsw

import (
	"cmp"
	"slices"
)

// The helpers in this file are the only writers of neighbor lists. They
// read vectors before taking a layer lock and never while holding one.

// linkForward publishes the forward edges of a new node.
func (g *Graph) linkForward(layer *Layer, node NodeIndex, selected []Neighbor) {
	layer.SetNeighbors(node, selected)
}

// addBackEdge adds edge to target's list. When the list outgrows its limit
// it is cut back to the cap, keeping the closest entries by cached distance.
// In construction mode the limit is twice the cap.
func (g *Graph) addBackEdge(layer *Layer, target NodeIndex, edge Neighbor) {
	capacity := g.capFor(layer.Level())
	limit := capacity
	if g.Mode() == ModeConstruction {
		limit = 2 * capacity
	}

	layer.update(target, func(cur []Neighbor) ([]Neighbor, bool) {
		for _, n := range cur {
			if n.Node == edge.Node {
				return nil, false
			}
		}
		next := make([]Neighbor, len(cur), len(cur)+1)
		copy(next, cur)
		next = append(next, edge)
		if len(next) > limit {
			sortByDist(next)
			next = next[:capacity]
		}
		return next, true
	})
}

// shrink cuts node's list at layer down to its cap using diversification.
// The selection runs on a snapshot; if the list changed meanwhile the work
// is redone.
func (g *Graph) shrink(layer *Layer, node NodeIndex) {
	capacity := g.capFor(layer.Level())
	for attempt := 0; attempt < 4; attempt++ {
		snapshot := layer.Neighbors(node)
		if len(snapshot) <= capacity {
			return
		}

		ranked := slices.Clone(snapshot)
		sortByDist(ranked)
		selected := g.diversify(ranked, capacity)

		applied := layer.update(node, func(cur []Neighbor) ([]Neighbor, bool) {
			if !sameList(cur, snapshot) {
				return nil, false
			}
			return selected, true
		})
		if applied {
			return
		}
	}

	// Contended: fall back to a distance-only cut, which needs no vectors.
	layer.update(node, func(cur []Neighbor) ([]Neighbor, bool) {
		if len(cur) <= capacity {
			return nil, false
		}
		next := slices.Clone(cur)
		sortByDist(next)
		return next[:capacity], true
	})
}

func sortByDist(list []Neighbor) {
	slices.SortFunc(list, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Dist, b.Dist); c != 0 {
			return c
		}
		return cmp.Compare(a.Node, b.Node)
	})
}

func sameList(a, b []Neighbor) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}
