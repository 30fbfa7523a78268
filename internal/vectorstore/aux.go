package vectorstore

import (
	"slices"
	"sync"
)

const auxShards = 16

type auxShard struct {
	mu   sync.RWMutex
	vecs map[uint32][]float32
}

// Aux is a sharded map from internal index to vector.
// It is safe for concurrent use.
type Aux struct {
	dim    int
	shards [auxShards]auxShard
	mem    MemoryReserver
}

// NewAux creates an empty auxiliary store.
func NewAux(dim int, mem MemoryReserver) *Aux {
	a := &Aux{dim: dim, mem: mem}
	for i := range a.shards {
		a.shards[i].vecs = make(map[uint32][]float32)
	}
	return a
}

func (a *Aux) shard(idx uint32) *auxShard {
	return &a.shards[idx%auxShards]
}

// Put stores a copy of v under idx, replacing any previous vector.
func (a *Aux) Put(idx uint32, v []float32) error {
	if len(v) != a.dim {
		return ErrWrongDimension
	}
	if a.mem != nil {
		if err := a.mem.ReserveMemory(int64(a.dim) * 4); err != nil {
			return err
		}
	}
	cp := slices.Clone(v)

	s := a.shard(idx)
	s.mu.Lock()
	_, replaced := s.vecs[idx]
	s.vecs[idx] = cp
	s.mu.Unlock()

	if replaced && a.mem != nil {
		a.mem.ReleaseMemory(int64(a.dim) * 4)
	}
	return nil
}

// Vector returns the vector stored under idx.
func (a *Aux) Vector(idx uint32) ([]float32, bool) {
	s := a.shard(idx)
	s.mu.RLock()
	v, ok := s.vecs[idx]
	s.mu.RUnlock()
	return v, ok
}

// Delete removes the vector stored under idx.
func (a *Aux) Delete(idx uint32) bool {
	s := a.shard(idx)
	s.mu.Lock()
	_, ok := s.vecs[idx]
	delete(s.vecs, idx)
	s.mu.Unlock()

	if ok && a.mem != nil {
		a.mem.ReleaseMemory(int64(a.dim) * 4)
	}
	return ok
}

// Len returns the number of stored vectors.
func (a *Aux) Len() int {
	n := 0
	for i := range a.shards {
		s := &a.shards[i]
		s.mu.RLock()
		n += len(s.vecs)
		s.mu.RUnlock()
	}
	return n
}

// Range calls fn for every stored vector until fn returns false.
// Shards are visited one at a time under their read lock; fn must not
// call back into the store.
func (a *Aux) Range(fn func(idx uint32, v []float32) bool) {
	for i := range a.shards {
		s := &a.shards[i]
		s.mu.RLock()
		for idx, v := range s.vecs {
			if !fn(idx, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// Clear removes all vectors.
func (a *Aux) Clear() {
	released := 0
	for i := range a.shards {
		s := &a.shards[i]
		s.mu.Lock()
		released += len(s.vecs)
		s.vecs = make(map[uint32][]float32)
		s.mu.Unlock()
	}
	if a.mem != nil {
		a.mem.ReleaseMemory(int64(released*a.dim) * 4)
	}
}
