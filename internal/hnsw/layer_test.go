package hnsw

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayer(t *testing.T) {
	l := newLayer(2, 4)
	assert.Equal(t, 2, l.Level())

	assert.False(t, l.Has(3))
	assert.Nil(t, l.Neighbors(3))

	l.EnsureCapacity(100)
	assert.False(t, l.Has(100), "capacity does not assign the node")

	require.True(t, l.Add(3))
	assert.False(t, l.Add(3))
	assert.True(t, l.Has(3))
	assert.Empty(t, l.Neighbors(3))
	assert.Equal(t, 1, l.Nodes())

	in := []Neighbor{{Node: 1, Dist: 0.5}, {Node: 2, Dist: 0.7}}
	l.SetNeighbors(3, in)
	in[0].Node = 99
	assert.Equal(t, []Neighbor{{Node: 1, Dist: 0.5}, {Node: 2, Dist: 0.7}}, l.Neighbors(3))
	assert.Equal(t, []NodeIndex{1, 2}, l.AppendNeighborIDs(3, nil))
	assert.Equal(t, 2, l.Edges())

	// Updates on unassigned nodes are ignored.
	l.SetNeighbors(50, in)
	assert.Nil(t, l.Neighbors(50))
}

func TestLayer_ConcurrentReplace(t *testing.T) {
	l := newLayer(0, 1)
	require.True(t, l.Add(0))

	lists := [][]Neighbor{
		{{Node: 1, Dist: 1}, {Node: 2, Dist: 2}},
		{{Node: 3, Dist: 3}, {Node: 4, Dist: 4}, {Node: 5, Dist: 5}},
	}

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range 1000 {
				l.SetNeighbors(0, lists[(w+i)%2])
				_ = l.Add(NodeIndex(1 + w*1000 + i))
			}
		}(w)
	}
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 2000 {
				got := l.Neighbors(0)
				// Never a mix of the two lists.
				if len(got) == 2 {
					assert.Equal(t, lists[0], got)
				} else if len(got) == 3 {
					assert.Equal(t, lists[1], got)
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 4001, l.Nodes())
}

func TestAddBackEdge(t *testing.T) {
	g := newTestGraph(t, 2, func(o *Options) { o.M = 2 })
	require.NoError(t, g.assignLevels(0, 1))
	layer := g.layer(1)

	// Cap at level 1 is M = 2.
	g.addBackEdge(layer, 0, Neighbor{Node: 1, Dist: 3})
	g.addBackEdge(layer, 0, Neighbor{Node: 2, Dist: 1})
	g.addBackEdge(layer, 0, Neighbor{Node: 2, Dist: 1})
	assert.Len(t, layer.Neighbors(0), 2)

	g.addBackEdge(layer, 0, Neighbor{Node: 3, Dist: 2})
	assert.Equal(t, []Neighbor{{Node: 2, Dist: 1}, {Node: 3, Dist: 2}}, layer.Neighbors(0))

	g.SetMode(ModeConstruction)
	g.addBackEdge(layer, 0, Neighbor{Node: 4, Dist: 5})
	g.addBackEdge(layer, 0, Neighbor{Node: 5, Dist: 6})
	assert.Len(t, layer.Neighbors(0), 4)
	g.addBackEdge(layer, 0, Neighbor{Node: 6, Dist: 0.5})
	assert.Equal(t, []Neighbor{{Node: 6, Dist: 0.5}, {Node: 2, Dist: 1}}, layer.Neighbors(0))
}

func TestLayer_ForEachDuringAdd(t *testing.T) {
	const n = 2000
	l := newLayer(0, 4)
	l.EnsureCapacity(n - 1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := n - 1; i >= 0; i-- {
			l.Add(NodeIndex(i))
		}
	}()
	go func() {
		defer wg.Done()
		for l.Nodes() < n {
			seen := 0
			l.forEach(func(NodeIndex, []Neighbor) bool {
				seen++
				return true
			})
			assert.LessOrEqual(t, seen, n)
		}
	}()
	wg.Wait()

	assert.Equal(t, n, l.Nodes())
	assert.Zero(t, l.Edges())
}
