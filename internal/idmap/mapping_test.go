package idmap

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	m := New()

	idx, ok, err := m.Register(42)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(0), idx)

	idx, ok, err = m.Register(42)
	require.NoError(t, err)
	assert.False(t, ok, "duplicate id must not allocate")
	assert.Equal(t, uint32(0), idx)
	assert.Equal(t, uint32(1), m.Next())

	idx, ok, err = m.Register(7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(1), idx)

	id, ok := m.ID(1)
	require.True(t, ok)
	assert.Equal(t, uint64(7), id)
	assert.Equal(t, 2, m.Len())
}

func TestRemove(t *testing.T) {
	m := New()
	for id := range uint64(5) {
		_, _, err := m.Register(id * 10)
		require.NoError(t, err)
	}

	idx, ok := m.Remove(20)
	require.True(t, ok)
	assert.Equal(t, uint32(2), idx)

	_, ok = m.Remove(20)
	assert.False(t, ok)

	_, ok = m.ID(2)
	assert.False(t, ok, "removed index must not resolve")
	assert.False(t, m.Contains(20))
	assert.Equal(t, 4, m.Len())
	assert.Equal(t, 1, m.Tombstones())
	assert.False(t, m.LiveIndices().Contains(2))

	// Re-registering allocates a fresh index.
	idx, ok, err := m.Register(20)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(5), idx)
}

func TestLiveOrder(t *testing.T) {
	m := New()
	ids := []uint64{900, 5, 77, 1 << 40, 3}
	for _, id := range ids {
		_, _, err := m.Register(id)
		require.NoError(t, err)
	}
	m.Remove(77)

	var gotIDs []uint64
	var gotIdx []uint32
	for id, idx := range m.Live() {
		gotIDs = append(gotIDs, id)
		gotIdx = append(gotIdx, idx)
	}
	assert.Equal(t, []uint64{900, 5, 1 << 40, 3}, gotIDs)
	assert.Equal(t, []uint32{0, 1, 3, 4}, gotIdx)

	count := 0
	for range m.Live() {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestClear(t *testing.T) {
	m := New()
	_, _, _ = m.Register(1)
	_, _, _ = m.Register(2)
	m.Clear()

	assert.Zero(t, m.Len())
	assert.Zero(t, m.Next())
	assert.False(t, m.Contains(1))

	idx, ok, err := m.Register(2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(0), idx)
}

func TestRestore(t *testing.T) {
	m, err := Restore(10, []Pair{{ID: 1, Index: 3}, {ID: 2, Index: 9}})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, uint32(10), m.Next())
	assert.Equal(t, 8, m.Tombstones())

	idx, ok := m.Index(2)
	require.True(t, ok)
	assert.Equal(t, uint32(9), idx)

	tests := []struct {
		name  string
		next  uint32
		pairs []Pair
	}{
		{"index beyond next", 2, []Pair{{ID: 1, Index: 2}}},
		{"duplicate id", 5, []Pair{{ID: 1, Index: 0}, {ID: 1, Index: 1}}},
		{"duplicate index", 5, []Pair{{ID: 1, Index: 0}, {ID: 2, Index: 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Restore(tt.next, tt.pairs)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestSerialization(t *testing.T) {
	m := New()
	for id := range uint64(1000) {
		_, _, err := m.Register(id*3 + 1)
		require.NoError(t, err)
	}
	for id := uint64(0); id < 1000; id += 7 {
		m.Remove(id*3 + 1)
	}

	var buf bytes.Buffer
	n, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	got, err := ReadFrom(&buf)
	require.NoError(t, err)

	assert.Equal(t, m.Len(), got.Len())
	assert.Equal(t, m.Next(), got.Next())
	for id, idx := range m.Live() {
		gidx, ok := got.Index(id)
		require.True(t, ok)
		assert.Equal(t, idx, gidx)
	}
	assert.False(t, got.Contains(1))
}

func TestReadFrom_Truncated(t *testing.T) {
	m := New()
	_, _, _ = m.Register(5)
	_, _, _ = m.Register(6)

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)

	_, err = ReadFrom(bytes.NewReader(buf.Bytes()[:buf.Len()-4]))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestConcurrentRegisterRemove(t *testing.T) {
	m := New()
	const workers, perWorker = 8, 1000

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range perWorker {
				id := uint64(w*perWorker + i)
				_, ok, err := m.Register(id)
				assert.NoError(t, err)
				assert.True(t, ok)
				if i%4 == 0 {
					_, ok := m.Remove(id)
					assert.True(t, ok)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker*3/4, m.Len())
	assert.Equal(t, uint32(workers*perWorker), m.Next())

	seen := make(map[uint32]bool)
	for id, idx := range m.Live() {
		assert.False(t, seen[idx])
		seen[idx] = true
		back, ok := m.Index(id)
		require.True(t, ok)
		assert.Equal(t, idx, back)
	}
	assert.Len(t, seen, m.Len())
}

func TestConcurrentDuplicateRegister(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := m.Register(99)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, uint32(1), m.Next())
}
