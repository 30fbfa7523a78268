package hnsw

import (
	"github.com/hupe1980/vecgraph/internal/searcher"
)

// selectNeighbors picks up to m neighbors from candidates (ascending by
// distance to the new node) with alpha diversification. Vectors are read
// here, so no layer lock may be held by the caller.
func (g *Graph) selectNeighbors(candidates []searcher.Item, m int) []Neighbor {
	if len(candidates) <= m {
		out := make([]Neighbor, len(candidates))
		for i, c := range candidates {
			out[i] = Neighbor{Node: c.Node, Dist: c.Distance}
		}
		return out
	}

	ranked := make([]Neighbor, len(candidates))
	for i, c := range candidates {
		ranked[i] = Neighbor{Node: c.Node, Dist: c.Distance}
	}
	return g.diversify(ranked, m)
}

// diversify applies the alpha rule to ranked (ascending) and fills the
// remaining slots with the closest rejected candidates.
//
// A candidate c is kept only if alpha*d(q,c) <= d(c,s) for every kept s.
func (g *Graph) diversify(ranked []Neighbor, m int) []Neighbor {
	if len(ranked) <= m {
		return ranked
	}
	alpha := g.opts.Alpha

	result := make([]Neighbor, 0, m)
	resultVecs := make([][]float32, 0, m)
	taken := make([]bool, len(ranked))

	for i, c := range ranked {
		if len(result) >= m {
			break
		}
		cv, ok := g.vectors.Vector(c.Node)
		if !ok {
			continue
		}
		good := true
		for _, sv := range resultVecs {
			if alpha*c.Dist > g.space.Distance(cv, sv) {
				good = false
				break
			}
		}
		if good {
			result = append(result, c)
			resultVecs = append(resultVecs, cv)
			taken[i] = true
		}
	}

	for i, c := range ranked {
		if len(result) >= m {
			break
		}
		if !taken[i] {
			result = append(result, c)
		}
	}
	return result
}
