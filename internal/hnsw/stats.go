package hnsw

import (
	"fmt"
)

// Stats returns per-level node and edge counts.
func (g *Graph) Stats() Stats {
	ep, maxLevel, _ := g.EntryPoint()

	n := g.numLayers()
	levels := make([]LevelStats, n)
	for i := 0; i < n; i++ {
		layer := g.layer(i)
		nodes, edges := layer.Nodes(), layer.Edges()
		avg := 0.0
		if nodes > 0 {
			avg = float64(edges) / float64(nodes)
		}
		levels[i] = LevelStats{Level: i, Nodes: nodes, Edges: edges, AvgDegree: avg}
	}

	return Stats{
		Nodes:      g.Len(),
		NextIndex:  g.NextIndex(),
		MaxLevel:   maxLevel,
		EntryPoint: ep,
		Mode:       g.Mode(),
		Parameters: map[string]string{
			"M":              fmt.Sprintf("%d", g.maxConns),
			"M0":             fmt.Sprintf("%d", g.maxConns0),
			"EFConstruction": fmt.Sprintf("%d", g.opts.EFConstruction),
			"Alpha":          fmt.Sprintf("%g", g.opts.Alpha),
			"Metric":         g.opts.Metric.String(),
		},
		Levels: levels,
	}
}
