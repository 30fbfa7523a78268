package hnsw

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// InsertBatch inserts vectors under the given indices. All vectors are
// stored first, then linked in parallel. The graph is left in
// ModeConstruction; call PrepareForSearch once loading is done.
func (g *Graph) InsertBatch(ctx context.Context, idxs []NodeIndex, vectors [][]float32) error {
	if len(idxs) != len(vectors) {
		return ErrBatchMismatch
	}
	for _, v := range vectors {
		if err := g.checkDimension(v); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	g.SetMode(ModeConstruction)

	levels := make([]int, len(idxs))
	for i, idx := range idxs {
		level, err := g.place(idx, vectors[i])
		if err != nil {
			// Nodes placed so far are linked below so the graph stays consistent.
			g.linkPlaced(idxs[:i], levels[:i])
			return err
		}
		levels[i] = level
	}

	g.linkPlaced(idxs, levels)
	return nil
}

func (g *Graph) linkPlaced(idxs []NodeIndex, levels []int) {
	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i := range idxs {
		eg.Go(func() error {
			vec, _ := g.vectors.Vector(idxs[i])
			g.link(idxs[i], vec, levels[i])
			g.count.Add(1)
			return nil
		})
	}
	_ = eg.Wait()
}

// PrepareForSearch switches to ModeSearch and shrinks every neighbor list
// that grew past its cap during construction.
func (g *Graph) PrepareForSearch(ctx context.Context) error {
	g.SetMode(ModeSearch)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))

	for level := 0; level < g.numLayers(); level++ {
		layer := g.layer(level)
		capacity := g.capFor(level)

		var over []NodeIndex
		layer.forEach(func(node NodeIndex, list []Neighbor) bool {
			if len(list) > capacity {
				over = append(over, node)
			}
			return true
		})

		const chunk = 256
		for start := 0; start < len(over); start += chunk {
			nodes := over[start:min(start+chunk, len(over))]
			eg.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				for _, node := range nodes {
					g.shrink(layer, node)
				}
				return nil
			})
		}
	}
	return eg.Wait()
}
