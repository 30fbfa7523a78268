// Package idmap maps external uint64 identifiers to dense internal node
// indices and back.
//
// Indices are allocated monotonically and never reused until the mapping is
// rebuilt. Removing an identifier leaves a tombstone at its index; the graph
// keeps the node but searches skip it because the reverse lookup fails.
package idmap

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
)

const numShards = 16

var (
	// ErrExhausted is returned when every uint32 index has been allocated.
	ErrExhausted = errors.New("idmap: index space exhausted")

	// ErrCorrupt is returned when a serialized mapping fails validation.
	ErrCorrupt = errors.New("idmap: corrupt mapping")
)

type forwardShard struct {
	mu sync.RWMutex
	m  map[uint64]uint32
}

type reverseShard struct {
	mu sync.RWMutex
	m  map[uint32]uint64
}

// Mapping is a concurrent bidirectional id <-> index table.
//
// Lock order is forward shard, then reverse shard, then the liveness set.
// Register and Remove for the same id serialize on its forward shard.
type Mapping struct {
	next  atomic.Uint32
	count atomic.Int64

	fwd [numShards]forwardShard
	rev [numShards]reverseShard

	liveMu sync.RWMutex
	live   *roaring.Bitmap
}

// New returns an empty mapping.
func New() *Mapping {
	m := &Mapping{live: roaring.New()}
	for i := range m.fwd {
		m.fwd[i].m = make(map[uint64]uint32)
		m.rev[i].m = make(map[uint32]uint64)
	}
	return m
}

func fwdShard(id uint64) uint64 {
	// Fibonacci hashing spreads sequential ids across shards.
	return (id * 0x9E3779B97F4A7C15) >> 60
}

func revShard(idx uint32) uint32 {
	return idx & (numShards - 1)
}

// Register allocates the next index for id. It reports false when id is
// already live, in which case nothing changes.
func (m *Mapping) Register(id uint64) (uint32, bool, error) {
	fs := &m.fwd[fwdShard(id)]
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if idx, ok := fs.m[id]; ok {
		return idx, false, nil
	}

	idx, err := m.allocate()
	if err != nil {
		return 0, false, err
	}

	fs.m[id] = idx

	rs := &m.rev[revShard(idx)]
	rs.mu.Lock()
	rs.m[idx] = id
	rs.mu.Unlock()

	m.liveMu.Lock()
	m.live.Add(idx)
	m.liveMu.Unlock()

	m.count.Add(1)
	return idx, true, nil
}

func (m *Mapping) allocate() (uint32, error) {
	for {
		cur := m.next.Load()
		if cur == math.MaxUint32 {
			return 0, ErrExhausted
		}
		if m.next.CompareAndSwap(cur, cur+1) {
			return cur, nil
		}
	}
}

// Remove drops id and returns the index it occupied.
func (m *Mapping) Remove(id uint64) (uint32, bool) {
	fs := &m.fwd[fwdShard(id)]
	fs.mu.Lock()
	defer fs.mu.Unlock()

	idx, ok := fs.m[id]
	if !ok {
		return 0, false
	}
	delete(fs.m, id)

	rs := &m.rev[revShard(idx)]
	rs.mu.Lock()
	delete(rs.m, idx)
	rs.mu.Unlock()

	m.liveMu.Lock()
	m.live.Remove(idx)
	m.liveMu.Unlock()

	m.count.Add(-1)
	return idx, true
}

// Index returns the index assigned to id.
func (m *Mapping) Index(id uint64) (uint32, bool) {
	fs := &m.fwd[fwdShard(id)]
	fs.mu.RLock()
	idx, ok := fs.m[id]
	fs.mu.RUnlock()
	return idx, ok
}

// ID returns the live id stored at idx. Tombstoned and unallocated indices
// report false.
func (m *Mapping) ID(idx uint32) (uint64, bool) {
	rs := &m.rev[revShard(idx)]
	rs.mu.RLock()
	id, ok := rs.m[idx]
	rs.mu.RUnlock()
	return id, ok
}

// Contains reports whether id is live.
func (m *Mapping) Contains(id uint64) bool {
	_, ok := m.Index(id)
	return ok
}

// Len returns the number of live ids.
func (m *Mapping) Len() int { return int(m.count.Load()) }

// Next returns the next index that would be allocated.
func (m *Mapping) Next() uint32 { return m.next.Load() }

// Tombstones returns the number of allocated indices that are no longer live.
func (m *Mapping) Tombstones() int {
	return int(m.next.Load()) - m.Len()
}

// LiveIndices returns a snapshot of the live index set.
func (m *Mapping) LiveIndices() *roaring.Bitmap {
	m.liveMu.RLock()
	defer m.liveMu.RUnlock()
	return m.live.Clone()
}

// Live yields (id, idx) pairs in ascending index order. It iterates a
// snapshot of the liveness set; ids removed during iteration are skipped.
func (m *Mapping) Live() iter.Seq2[uint64, uint32] {
	return func(yield func(uint64, uint32) bool) {
		snap := m.LiveIndices()
		it := snap.Iterator()
		for it.HasNext() {
			idx := it.Next()
			id, ok := m.ID(idx)
			if !ok {
				continue
			}
			if !yield(id, idx) {
				return
			}
		}
	}
}

// Clear removes every id and resets the allocator.
func (m *Mapping) Clear() {
	m.lockAll()
	defer m.unlockAll()

	for i := range m.fwd {
		m.fwd[i].m = make(map[uint64]uint32)
		m.rev[i].m = make(map[uint32]uint64)
	}
	m.live.Clear()
	m.next.Store(0)
	m.count.Store(0)
}

// Pair is one live entry.
type Pair struct {
	ID    uint64
	Index uint32
}

// Restore builds a mapping from explicit pairs. next must exceed every index.
func Restore(next uint32, pairs []Pair) (*Mapping, error) {
	m := New()
	for _, p := range pairs {
		if p.Index >= next {
			return nil, fmt.Errorf("%w: index %d beyond next %d", ErrCorrupt, p.Index, next)
		}
		fs := &m.fwd[fwdShard(p.ID)]
		if _, dup := fs.m[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrCorrupt, p.ID)
		}
		rs := &m.rev[revShard(p.Index)]
		if _, dup := rs.m[p.Index]; dup {
			return nil, fmt.Errorf("%w: duplicate index %d", ErrCorrupt, p.Index)
		}
		fs.m[p.ID] = p.Index
		rs.m[p.Index] = p.ID
		m.live.Add(p.Index)
	}
	m.next.Store(next)
	m.count.Store(int64(len(pairs)))
	return m, nil
}

func (m *Mapping) lockAll() {
	for i := range m.fwd {
		m.fwd[i].mu.Lock()
	}
	for i := range m.rev {
		m.rev[i].mu.Lock()
	}
	m.liveMu.Lock()
}

func (m *Mapping) unlockAll() {
	m.liveMu.Unlock()
	for i := len(m.rev) - 1; i >= 0; i-- {
		m.rev[i].mu.Unlock()
	}
	for i := len(m.fwd) - 1; i >= 0; i-- {
		m.fwd[i].mu.Unlock()
	}
}

// WriteTo serializes the mapping: next index, the portable roaring liveness
// set, then one id per live index in ascending index order.
func (m *Mapping) WriteTo(w io.Writer) (int64, error) {
	m.lockAll()
	defer m.unlockAll()

	bw := bufio.NewWriter(w)
	cw := &countingWriter{w: bw}

	if err := binary.Write(cw, binary.LittleEndian, m.next.Load()); err != nil {
		return cw.n, err
	}
	if _, err := m.live.WriteTo(cw); err != nil {
		return cw.n, err
	}

	buf := make([]byte, 8)
	it := m.live.Iterator()
	for it.HasNext() {
		idx := it.Next()
		id := m.rev[revShard(idx)].m[idx]
		binary.LittleEndian.PutUint64(buf, id)
		if _, err := cw.Write(buf); err != nil {
			return cw.n, err
		}
	}

	return cw.n, bw.Flush()
}

// ReadFrom decodes a mapping written by WriteTo.
func ReadFrom(r io.Reader) (*Mapping, error) {
	br := bufio.NewReader(r)

	var next uint32
	if err := binary.Read(br, binary.LittleEndian, &next); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	live := roaring.New()
	if _, err := live.ReadFrom(br); err != nil {
		return nil, fmt.Errorf("%w: liveness set: %v", ErrCorrupt, err)
	}

	pairs := make([]Pair, 0, live.GetCardinality())
	buf := make([]byte, 8)
	it := live.Iterator()
	for it.HasNext() {
		idx := it.Next()
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("%w: ids: %v", ErrCorrupt, err)
		}
		pairs = append(pairs, Pair{ID: binary.LittleEndian.Uint64(buf), Index: idx})
	}

	return Restore(next, pairs)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
