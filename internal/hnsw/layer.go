package hnsw

import (
	"slices"
	"sync"
	"sync/atomic"
)

const layerLockShards = 256

// Neighbor is an edge target with its cached distance to the edge owner.
type Neighbor struct {
	Node NodeIndex
	Dist float32
}

type slot struct {
	list atomic.Pointer[[]Neighbor]
}

// Layer is the adjacency of one graph level. Neighbor lists are immutable
// once published and replaced wholesale, so a reader sees either the old or
// the new list, never a mix.
type Layer struct {
	level int

	mu    sync.RWMutex // guards slots growth
	slots []*slot

	nodes atomic.Int64

	locks [layerLockShards]sync.Mutex
}

func newLayer(level, capacity int) *Layer {
	return &Layer{
		level: level,
		slots: make([]*slot, 0, max(capacity, 16)),
	}
}

// Level returns the layer number, 0 being the densest.
func (l *Layer) Level() int { return l.level }

// Nodes returns the number of nodes assigned to the layer.
func (l *Layer) Nodes() int { return int(l.nodes.Load()) }

// EnsureCapacity grows the layer so node can be addressed.
func (l *Layer) EnsureCapacity(node NodeIndex) {
	l.mu.RLock()
	ok := int(node) < len(l.slots)
	l.mu.RUnlock()
	if ok {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.growLocked(node)
}

func (l *Layer) growLocked(node NodeIndex) {
	need := int(node) + 1
	if need <= len(l.slots) {
		return
	}
	if need <= cap(l.slots) {
		l.slots = l.slots[:need]
		return
	}
	grown := make([]*slot, need, max(need, 2*cap(l.slots)))
	copy(grown, l.slots)
	l.slots = grown
}

// Add assigns node to the layer with an empty neighbor list.
// Reports false if the node was already present.
func (l *Layer) Add(node NodeIndex) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.growLocked(node)
	if l.slots[node] != nil {
		return false
	}
	s := &slot{}
	empty := []Neighbor{}
	s.list.Store(&empty)
	l.slots[node] = s
	l.nodes.Add(1)
	return true
}

func (l *Layer) lookup(node NodeIndex) *slot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if int(node) >= len(l.slots) {
		return nil
	}
	return l.slots[node]
}

// Has reports whether node is assigned to the layer.
func (l *Layer) Has(node NodeIndex) bool {
	return l.lookup(node) != nil
}

// Neighbors returns the published neighbor list of node. The slice must not
// be modified.
func (l *Layer) Neighbors(node NodeIndex) []Neighbor {
	s := l.lookup(node)
	if s == nil {
		return nil
	}
	return *s.list.Load()
}

// AppendNeighborIDs appends the neighbor indices of node to dst.
func (l *Layer) AppendNeighborIDs(node NodeIndex, dst []NodeIndex) []NodeIndex {
	for _, n := range l.Neighbors(node) {
		dst = append(dst, n.Node)
	}
	return dst
}

// SetNeighbors replaces the neighbor list of node with a copy of list.
func (l *Layer) SetNeighbors(node NodeIndex, list []Neighbor) {
	l.update(node, func([]Neighbor) ([]Neighbor, bool) {
		return append([]Neighbor(nil), list...), true
	})
}

// update runs fn under the node's write lock and publishes the list it
// returns. fn receives the current list and must not modify it. fn must not
// read vectors.
func (l *Layer) update(node NodeIndex, fn func(cur []Neighbor) ([]Neighbor, bool)) bool {
	s := l.lookup(node)
	if s == nil {
		return false
	}
	mu := &l.locks[node%layerLockShards]
	mu.Lock()
	defer mu.Unlock()

	next, ok := fn(*s.list.Load())
	if !ok {
		return false
	}
	s.list.Store(&next)
	return true
}

// forEach calls fn for every node of the layer in ascending index order.
// It walks a copy of the slot table since Add writes into the shared
// backing array; fn may therefore call back into the layer.
func (l *Layer) forEach(fn func(node NodeIndex, list []Neighbor) bool) {
	l.mu.RLock()
	slots := slices.Clone(l.slots)
	l.mu.RUnlock()
	for i, s := range slots {
		if s == nil {
			continue
		}
		if !fn(NodeIndex(i), *s.list.Load()) {
			return
		}
	}
}

// Edges returns the total number of directed edges in the layer.
func (l *Layer) Edges() int {
	n := 0
	l.forEach(func(_ NodeIndex, list []Neighbor) bool {
		n += len(list)
		return true
	})
	return n
}
