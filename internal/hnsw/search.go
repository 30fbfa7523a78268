package hnsw

import (
	"github.com/hupe1980/vecgraph/internal/searcher"
)

// Search returns up to k nodes closest to query, ascending by distance.
// ef is raised to at least k.
func (g *Graph) Search(query []float32, k, ef int, accept AcceptFunc) ([]SearchResult, error) {
	return g.SearchMultiEntry(query, k, ef, 1, accept)
}

// SearchMultiEntry is Search seeded from the greedy entry plus up to
// probes-1 pseudo-random nodes. All entries share one ef budget.
func (g *Graph) SearchMultiEntry(query []float32, k, ef, probes int, accept AcceptFunc) ([]SearchResult, error) {
	if err := g.checkDimension(query); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	ep, maxLevel, ok := g.EntryPoint()
	if !ok {
		return nil, nil
	}

	q := g.space.Prepare(query)
	cur := ep
	curDist, _ := g.distanceTo(q, cur)
	for l := maxLevel; l > 0; l-- {
		cur, curDist = g.greedyClosest(q, cur, curDist, l)
	}

	entries := []searcher.Item{{Node: cur, Distance: curDist}}
	if probes > 1 && g.Len() > probes {
		entries = g.appendProbes(entries, q, probes-1)
	}

	s := searcher.Get()
	defer searcher.Put(s)

	items := g.searchLayer(s, q, entries, 0, max(ef, k), accept)
	if len(items) > k {
		items = items[:k]
	}
	res := make([]SearchResult, len(items))
	for i, it := range items {
		res[i] = SearchResult{Node: it.Node, Distance: it.Distance}
	}
	return res, nil
}

// appendProbes adds up to n distinct random linked nodes as extra entries.
func (g *Graph) appendProbes(entries []searcher.Item, q []float32, n int) []searcher.Item {
	limit := g.NextIndex()
	if limit == 0 {
		return entries
	}
	layer0 := g.layer(0)
	for attempts := 0; n > 0 && attempts < 4*n+8; attempts++ {
		node := g.randomNode(limit)
		if !layer0.Has(node) || containsNode(entries, node) {
			continue
		}
		d, ok := g.distanceTo(q, node)
		if !ok {
			continue
		}
		entries = append(entries, searcher.Item{Node: node, Distance: d})
		n--
	}
	return entries
}

func containsNode(items []searcher.Item, node NodeIndex) bool {
	for _, it := range items {
		if it.Node == node {
			return true
		}
	}
	return false
}

// greedyClosest walks to the locally best neighbor at level until no
// neighbor improves.
func (g *Graph) greedyClosest(q []float32, cur NodeIndex, curDist float32, level int) (NodeIndex, float32) {
	layer := g.layer(level)
	if layer == nil {
		return cur, curDist
	}
	for changed := true; changed; {
		changed = false
		for _, n := range layer.Neighbors(cur) {
			d, ok := g.distanceTo(q, n.Node)
			if ok && d < curDist {
				cur, curDist = n.Node, d
				changed = true
			}
		}
	}
	return cur, curDist
}

// searchLayer runs a beam search of width ef at level from the given
// entries. The returned slice is ordered ascending and aliases s.Scratch.
func (g *Graph) searchLayer(s *searcher.Searcher, q []float32, entries []searcher.Item, level, ef int, accept AcceptFunc) []searcher.Item {
	s.Reset()
	layer := g.layer(level)
	if layer == nil {
		return nil
	}

	frontier := s.Frontier
	results := s.Results

	for _, e := range entries {
		if !s.Visited.Visit(e.Node) {
			continue
		}
		// Entries are always explored, even when not accepted as results.
		frontier.Push(e)
		if accept == nil || accept(e.Node) {
			results.PushBounded(e, ef)
		}
	}

	for frontier.Len() > 0 {
		curr, _ := frontier.Pop()

		if results.Len() >= ef {
			worst, _ := results.Top()
			if curr.Distance > worst.Distance {
				break
			}
		}

		s.Neighbors = layer.AppendNeighborIDs(curr.Node, s.Neighbors[:0])
		for _, next := range s.Neighbors {
			if !s.Visited.Visit(next) {
				continue
			}
			d, ok := g.distanceTo(q, next)
			if !ok {
				continue
			}
			if results.Len() >= ef {
				if worst, _ := results.Top(); d >= worst.Distance {
					continue
				}
			}
			item := searcher.Item{Node: next, Distance: d}
			frontier.Push(item)
			if accept == nil || accept(next) {
				results.PushBounded(item, ef)
			}
		}
	}

	s.Scratch = results.DrainAscending(s.Scratch[:0])
	return s.Scratch
}
