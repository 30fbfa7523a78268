package vecgraph

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecgraph/distance"
	"github.com/hupe1980/vecgraph/testutil"
)

func newTestIndex(t *testing.T, dim int, metric distance.Metric, opts ...Option) *Index {
	t.Helper()
	ix, err := New(dim, metric, append([]Option{WithSeed(42)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func insertAll(t *testing.T, ix *Index, vecs [][]float32) {
	t.Helper()
	ctx := context.Background()
	for i, v := range vecs {
		require.NoError(t, ix.Insert(ctx, uint64(i), v))
	}
}

func resultIDs(res []SearchResult) []uint64 {
	ids := make([]uint64, len(res))
	for i, r := range res {
		ids[i] = r.ID
	}
	return ids
}

func toTestResults(res []SearchResult) []testutil.SearchResult {
	out := make([]testutil.SearchResult, len(res))
	for i, r := range res {
		out[i] = testutil.SearchResult{ID: r.ID, Distance: r.Distance}
	}
	return out
}

func TestNew(t *testing.T) {
	t.Run("InvalidDimension", func(t *testing.T) {
		_, err := New(0, distance.MetricEuclidean)
		var target *ErrInvalidDimension
		require.ErrorAs(t, err, &target)
		assert.Equal(t, 0, target.Dimension)
	})

	t.Run("InvalidMetric", func(t *testing.T) {
		_, err := New(4, distance.Metric(99))
		require.Error(t, err)
	})

	t.Run("Defaults", func(t *testing.T) {
		ix := newTestIndex(t, 4, distance.MetricDot)
		assert.Equal(t, 4, ix.Dimension())
		assert.Equal(t, distance.MetricDot, ix.Metric())
		assert.Zero(t, ix.Len())
		assert.Zero(t, ix.TombstoneRatio())
		assert.False(t, ix.NeedsVacuum())
	})
}

func TestScenarioCosine(t *testing.T) {
	for _, threshold := range []int{DefaultExactScanThreshold, 0} {
		ix := newTestIndex(t, 3, distance.MetricCosine, WithM(16), WithExactScanThreshold(threshold))
		ctx := context.Background()

		require.NoError(t, ix.Insert(ctx, 1, []float32{1, 0, 0}))
		require.NoError(t, ix.Insert(ctx, 2, []float32{0, 1, 0}))
		require.NoError(t, ix.Insert(ctx, 3, []float32{0, 0, 1}))

		res, err := ix.Search(ctx, []float32{1, 0, 0}, 1)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, uint64(1), res[0].ID)
		assert.InDelta(t, 1.0, res[0].Score, 1e-6)
	}
}

func TestScenarioVacuum(t *testing.T) {
	ix := newTestIndex(t, 8, distance.MetricEuclidean)
	ctx := context.Background()

	for id := range uint64(150) {
		require.NoError(t, ix.Insert(ctx, id, testutil.DeterministicVector(id, 8)))
	}
	for id := range uint64(50) {
		require.True(t, ix.Remove(ctx, id))
	}

	assert.Equal(t, 100, ix.Len())
	assert.Equal(t, 50, ix.TombstoneCount())
	assert.True(t, ix.NeedsVacuum())

	n, err := ix.Vacuum(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Zero(t, ix.TombstoneCount())
	assert.Equal(t, 100, ix.Len())
	assert.False(t, ix.NeedsVacuum())
}

func TestInsert(t *testing.T) {
	ctx := context.Background()

	t.Run("DimensionMismatch", func(t *testing.T) {
		ix := newTestIndex(t, 4, distance.MetricEuclidean)
		err := ix.Insert(ctx, 1, []float32{1, 2, 3})

		var target *ErrDimensionMismatch
		require.ErrorAs(t, err, &target)
		assert.Equal(t, 4, target.Expected)
		assert.Equal(t, 3, target.Actual)
		assert.Zero(t, ix.Len())
		assert.False(t, ix.Contains(1))
	})

	t.Run("DuplicateKeepsFirstVector", func(t *testing.T) {
		ix := newTestIndex(t, 2, distance.MetricEuclidean)
		require.NoError(t, ix.Insert(ctx, 7, []float32{1, 1}))
		require.NoError(t, ix.Insert(ctx, 7, []float32{9, 9}))

		assert.Equal(t, 1, ix.Len())
		assert.Zero(t, ix.TombstoneCount())
		v, ok := ix.Vector(7)
		require.True(t, ok)
		assert.Equal(t, []float32{1, 1}, v)

		res, err := ix.Search(ctx, []float32{9, 9}, 5)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.InDelta(t, distance.L2([]float32{1, 1}, []float32{9, 9}), res[0].Distance, 1e-5)
	})

	t.Run("VectorIsCopied", func(t *testing.T) {
		ix := newTestIndex(t, 2, distance.MetricEuclidean)
		v := []float32{1, 2}
		require.NoError(t, ix.Insert(ctx, 1, v))
		v[0] = 100

		got, ok := ix.Vector(1)
		require.True(t, ok)
		assert.Equal(t, []float32{1, 2}, got)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		ix := newTestIndex(t, 2, distance.MetricEuclidean)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, ix.Insert(cctx, 1, []float32{0, 0}), context.Canceled)
	})
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	rng := testutil.NewRNG(1)
	vecs := rng.UniformVectors(300, 16)

	ix := newTestIndex(t, 16, distance.MetricEuclidean)
	insertAll(t, ix, vecs)

	for _, id := range []uint64{0, 17, 123, 299} {
		before, tombs := ix.Len(), ix.TombstoneCount()
		require.True(t, ix.Remove(ctx, id))
		assert.Equal(t, before-1, ix.Len())
		assert.Equal(t, tombs+1, ix.TombstoneCount())
		assert.False(t, ix.Contains(id))

		res, err := ix.SearchWithQuality(ctx, vecs[id], 10, QualityAccurate)
		require.NoError(t, err)
		assert.NotContains(t, resultIDs(res), id)

		_, ok := ix.Vector(id)
		assert.False(t, ok)
	}

	assert.False(t, ix.Remove(ctx, 0), "second remove reports not found")
	assert.False(t, ix.Remove(ctx, 10_000))
	assert.Equal(t, 296, ix.Len())

	// Re-inserting a removed id makes it searchable again.
	require.NoError(t, ix.Insert(ctx, 17, vecs[17]))
	res, err := ix.Search(ctx, vecs[17], 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, uint64(17), res[0].ID)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	ix, err := New(2, distance.MetricEuclidean)
	require.NoError(t, err)
	require.NoError(t, ix.Insert(ctx, 1, []float32{1, 1}))

	require.NoError(t, ix.Close())
	require.NoError(t, ix.Close(), "second close is a no-op")

	assert.ErrorIs(t, ix.Insert(ctx, 2, []float32{1, 1}), ErrClosed)
	_, err = ix.Search(ctx, []float32{1, 1}, 1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = ix.Vacuum(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, ix.Remove(ctx, 1))
	assert.ErrorIs(t, ix.Save(ctx, t.TempDir()), ErrClosed)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t, 8, distance.MetricEuclidean, WithM(8))
	insertAll(t, ix, testutil.NewRNG(3).UniformVectors(200, 8))
	ix.Remove(ctx, 5)

	s := ix.Stats()
	assert.Equal(t, 199, s.Live)
	assert.Equal(t, 1, s.Tombstones)
	assert.Equal(t, 200, s.GraphNodes)
	assert.Equal(t, 199, s.AuxVectors)
	assert.True(t, s.SearchReady)
	assert.Equal(t, "8", s.Parameters["M"])
	require.NotEmpty(t, s.Levels)
	assert.Equal(t, 200, s.Levels[0].Nodes)
	assert.InDelta(t, 1.0/200, s.TombstoneRatio, 1e-9)
}

func TestConcurrentInsertSearchRemove(t *testing.T) {
	const (
		dim     = 16
		writers = 4
		per     = 250
	)
	ctx := context.Background()
	ix := newTestIndex(t, dim, distance.MetricEuclidean)
	rng := testutil.NewRNG(7)
	vecs := rng.UniformVectors(writers*per, dim)

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range per {
				id := uint64(w*per + i)
				assert.NoError(t, ix.Insert(ctx, id, vecs[id]))
				if i%5 == 0 {
					assert.True(t, ix.Remove(ctx, id))
				}
			}
		}(w)
	}
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				res, err := ix.Search(ctx, vecs[i], 5)
				assert.NoError(t, err)
				assert.LessOrEqual(t, len(res), 5)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, writers*per*4/5, ix.Len())
	assert.Equal(t, writers*per/5, ix.TombstoneCount())

	for id := uint64(1); id < writers*per; id += 5 {
		res, err := ix.SearchWithQuality(ctx, vecs[id], 1, QualityAccurate)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, id, res[0].ID)
	}
}

func TestInsert_RemovedBeforeAuxStore(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t, 4, distance.MetricEuclidean)
	st := ix.state()

	idx, fresh, err := st.ids.Register(9)
	require.NoError(t, err)
	require.True(t, fresh)
	require.True(t, ix.Remove(ctx, 9))

	require.NoError(t, st.putAux(9, idx, []float32{1, 2, 3, 4}))
	assert.Zero(t, st.aux.Len())

	require.NoError(t, ix.Insert(ctx, 10, []float32{4, 3, 2, 1}))
	assert.Equal(t, 1, st.aux.Len())
}

func TestConcurrentInsertRemoveSameIDs(t *testing.T) {
	const dim, ids = 8, 64
	ctx := context.Background()
	ix := newTestIndex(t, dim, distance.MetricEuclidean)
	vecs := testutil.NewRNG(11).UniformVectors(ids, dim)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for round := range 20 {
				for id := range uint64(ids) {
					assert.NoError(t, ix.Insert(ctx, id+uint64(round)*ids, vecs[id]))
				}
			}
		}()
		go func() {
			defer wg.Done()
			for round := range 20 {
				for id := range uint64(ids) {
					ix.Remove(ctx, id+uint64(round)*ids)
				}
			}
		}()
	}
	wg.Wait()

	st := ix.Stats()
	assert.Equal(t, st.Live, st.AuxVectors)
}

func TestBasicMetricsCollector(t *testing.T) {
	ctx := context.Background()
	mc := &BasicMetricsCollector{}
	ix := newTestIndex(t, 2, distance.MetricEuclidean, WithMetricsCollector(mc))

	require.NoError(t, ix.Insert(ctx, 1, []float32{0, 0}))
	assert.Error(t, ix.Insert(ctx, 2, []float32{0}))
	_, err := ix.InsertBatch(ctx, []Record{{ID: 1, Vector: []float32{1, 1}}, {ID: 3, Vector: []float32{2, 2}}})
	require.NoError(t, err)
	_, err = ix.Search(ctx, []float32{0, 0}, 1)
	require.NoError(t, err)
	_, err = ix.Search(ctx, []float32{0, 0}, 0)
	assert.True(t, errors.Is(err, ErrInvalidK))
	ix.Remove(ctx, 1)
	ix.Remove(ctx, 1)
	_, err = ix.Vacuum(ctx)
	require.NoError(t, err)

	s := mc.GetStats()
	assert.Equal(t, int64(2), s.InsertCount)
	assert.Equal(t, int64(1), s.InsertErrors)
	assert.Equal(t, int64(1), s.BatchCount)
	assert.Equal(t, int64(2), s.BatchItems)
	assert.Equal(t, int64(1), s.BatchInserted)
	assert.Equal(t, int64(2), s.SearchCount)
	assert.Equal(t, int64(1), s.SearchExact)
	assert.Equal(t, int64(1), s.SearchErrors)
	assert.Equal(t, int64(2), s.RemoveCount)
	assert.Equal(t, int64(1), s.RemoveMisses)
	assert.Equal(t, int64(1), s.VacuumCount)
	assert.Equal(t, int64(1), s.VacuumReclaimed)
}
