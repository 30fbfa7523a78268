package vecgraph

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecgraph/blobstore"
	"github.com/hupe1980/vecgraph/distance"
	"github.com/hupe1980/vecgraph/persistence"
	"github.com/hupe1980/vecgraph/resource"
	"github.com/hupe1980/vecgraph/testutil"
)

func buildPersistIndex(t *testing.T, metric distance.Metric, opts ...Option) (*Index, [][]float32) {
	t.Helper()
	ctx := context.Background()
	vecs := testutil.NewRNG(43).UniformVectors(500, 12)

	ix := newTestIndex(t, 12, metric, opts...)
	insertAll(t, ix, vecs)
	for id := uint64(0); id < 500; id += 10 {
		require.True(t, ix.Remove(ctx, id))
	}
	return ix, vecs
}

func assertSameSearch(t *testing.T, want, got *Index, queries [][]float32) {
	t.Helper()
	ctx := context.Background()

	assert.Equal(t, want.Len(), got.Len())
	assert.Equal(t, want.TombstoneCount(), got.TombstoneCount())

	for _, q := range queries {
		a, err := want.Search(ctx, q, 10)
		require.NoError(t, err)
		b, err := got.Search(ctx, q, 10)
		require.NoError(t, err)

		require.Len(t, b, len(a))
		for i := range a {
			assert.Equal(t, a[i].ID, b[i].ID)
			assert.InDelta(t, a[i].Score, b[i].Score, 1e-6)
		}
	}
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	for _, metric := range allMetrics {
		t.Run(metric.String(), func(t *testing.T) {
			ix, vecs := buildPersistIndex(t, metric)
			dir := t.TempDir()
			require.NoError(t, ix.Save(ctx, dir))

			assert.FileExists(t, filepath.Join(dir, GraphFileName))
			assert.FileExists(t, filepath.Join(dir, IDMapFileName))

			loaded, err := Load(ctx, dir, 12, metric)
			require.NoError(t, err)
			defer loaded.Close()

			assertSameSearch(t, ix, loaded, vecs[:25])
			for id := uint64(0); id < 500; id += 10 {
				assert.False(t, loaded.Contains(id))
			}
		})
	}
}

func TestLoad_ContinuesAfterRestore(t *testing.T) {
	ctx := context.Background()
	ix, vecs := buildPersistIndex(t, distance.MetricEuclidean)
	dir := t.TempDir()
	require.NoError(t, ix.Save(ctx, dir))

	loaded, err := Load(ctx, dir, 12, distance.MetricEuclidean)
	require.NoError(t, err)
	defer loaded.Close()

	// Tombstoned ids can come back and new ids never collide with old nodes.
	require.NoError(t, loaded.Insert(ctx, 10, vecs[10]))
	require.NoError(t, loaded.Insert(ctx, 9999, []float32{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9}))
	assert.Equal(t, ix.Len()+2, loaded.Len())

	res, err := loaded.Search(ctx, vecs[10], 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), res[0].ID)

	n, err := loaded.Vacuum(ctx)
	require.NoError(t, err)
	assert.Equal(t, loaded.Len(), n)
	assert.Zero(t, loaded.TombstoneCount())
}

func TestLoad_CosineVectorsAreNormalized(t *testing.T) {
	ctx := context.Background()
	ix := newTestIndex(t, 2, distance.MetricCosine)
	require.NoError(t, ix.Insert(ctx, 1, []float32{3, 4}))

	dir := t.TempDir()
	require.NoError(t, ix.Save(ctx, dir))
	loaded, err := Load(ctx, dir, 2, distance.MetricCosine)
	require.NoError(t, err)
	defer loaded.Close()

	v, ok := loaded.Vector(1)
	require.True(t, ok)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, v, 1e-6)
}

func TestLoad_Errors(t *testing.T) {
	ctx := context.Background()
	ix, _ := buildPersistIndex(t, distance.MetricEuclidean, WithCompression(persistence.CompressionNone))
	dir := t.TempDir()
	require.NoError(t, ix.Save(ctx, dir))

	t.Run("DimensionMismatch", func(t *testing.T) {
		_, err := Load(ctx, dir, 16, distance.MetricEuclidean)
		var target *ErrDimensionMismatch
		require.ErrorAs(t, err, &target)
		assert.Equal(t, 16, target.Expected)
		assert.Equal(t, 12, target.Actual)
	})

	t.Run("MetricMismatch", func(t *testing.T) {
		_, err := Load(ctx, dir, 12, distance.MetricCosine)
		var target *ErrMetricMismatch
		require.ErrorAs(t, err, &target)
		assert.Equal(t, distance.MetricEuclidean, target.Actual)
	})

	t.Run("MissingDirectory", func(t *testing.T) {
		_, err := Load(ctx, filepath.Join(dir, "nope"), 12, distance.MetricEuclidean)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("MissingIDMap", func(t *testing.T) {
		partial := t.TempDir()
		data, err := os.ReadFile(filepath.Join(dir, GraphFileName))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(partial, GraphFileName), data, 0o644))

		_, err = Load(ctx, partial, 12, distance.MetricEuclidean)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("Corrupt", func(t *testing.T) {
		corrupt := t.TempDir()
		for _, name := range []string{GraphFileName, IDMapFileName} {
			data, err := os.ReadFile(filepath.Join(dir, name))
			require.NoError(t, err)
			if name == GraphFileName {
				data[len(data)-1] ^= 0xFF
			}
			require.NoError(t, os.WriteFile(filepath.Join(corrupt, name), data, 0o644))
		}

		_, err := Load(ctx, corrupt, 12, distance.MetricEuclidean)
		require.Error(t, err)
		assert.True(t, persistence.IsChecksumMismatch(err))
	})

	t.Run("CorruptPayloadLen", func(t *testing.T) {
		lz, _ := buildPersistIndex(t, distance.MetricEuclidean, WithCompression(persistence.CompressionLZ4))
		src := t.TempDir()
		require.NoError(t, lz.Save(ctx, src))

		for _, name := range []string{GraphFileName, IDMapFileName} {
			t.Run(name, func(t *testing.T) {
				corrupt := t.TempDir()
				for _, f := range []string{GraphFileName, IDMapFileName} {
					data, err := os.ReadFile(filepath.Join(src, f))
					require.NoError(t, err)
					if f == name {
						binary.LittleEndian.PutUint64(data[16:24], 1<<62)
					}
					require.NoError(t, os.WriteFile(filepath.Join(corrupt, f), data, 0o644))
				}

				var err error
				assert.NotPanics(t, func() { _, err = Load(ctx, corrupt, 12, distance.MetricEuclidean) })
				assert.ErrorIs(t, err, persistence.ErrTruncated)
			})
		}
	})

	t.Run("SwappedArtifacts", func(t *testing.T) {
		swapped := t.TempDir()
		g, err := os.ReadFile(filepath.Join(dir, GraphFileName))
		require.NoError(t, err)
		m, err := os.ReadFile(filepath.Join(dir, IDMapFileName))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(swapped, GraphFileName), m, 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(swapped, IDMapFileName), g, 0o644))

		_, err = Load(ctx, swapped, 12, distance.MetricEuclidean)
		assert.ErrorIs(t, err, persistence.ErrInvalidKind)
	})
}

func TestSaveToLoadFrom(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name        string
		compression persistence.Compression
	}{
		{"None", persistence.CompressionNone},
		{"LZ4", persistence.CompressionLZ4},
		{"ZSTD", persistence.CompressionZSTD},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix, vecs := buildPersistIndex(t, distance.MetricEuclidean, WithCompression(tt.compression))
			store := blobstore.NewMemoryStore()
			require.NoError(t, ix.SaveTo(ctx, store, "indexes/docs"))

			names, err := store.List(ctx, "indexes/docs/")
			require.NoError(t, err)
			assert.Equal(t, []string{"indexes/docs/" + GraphFileName, "indexes/docs/" + IDMapFileName}, names)

			loaded, err := LoadFrom(ctx, store, "indexes/docs", 12, distance.MetricEuclidean)
			require.NoError(t, err)
			defer loaded.Close()
			assertSameSearch(t, ix, loaded, vecs[100:120])
		})
	}

	t.Run("LocalStore", func(t *testing.T) {
		ix, vecs := buildPersistIndex(t, distance.MetricEuclidean)
		store := blobstore.NewLocalStore(t.TempDir())
		require.NoError(t, ix.SaveTo(ctx, store, ""))

		loaded, err := LoadFrom(ctx, store, "", 12, distance.MetricEuclidean)
		require.NoError(t, err)
		defer loaded.Close()
		assertSameSearch(t, ix, loaded, vecs[:10])
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := LoadFrom(ctx, blobstore.NewMemoryStore(), "missing", 12, distance.MetricEuclidean)
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})
}

func TestSave_RateLimited(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{WriteBytesPerSec: 1 << 30})
	ix, vecs := buildPersistIndex(t, distance.MetricEuclidean, WithResourceController(rc))

	dir := t.TempDir()
	require.NoError(t, ix.Save(ctx, dir))

	loaded, err := Load(ctx, dir, 12, distance.MetricEuclidean, WithResourceController(rc))
	require.NoError(t, err)
	defer loaded.Close()
	assertSameSearch(t, ix, loaded, vecs[:5])
	assert.Positive(t, rc.MemoryUsage())
}

func TestSave_Overwrite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := newTestIndex(t, 2, distance.MetricEuclidean)
	require.NoError(t, first.Insert(ctx, 1, []float32{1, 1}))
	require.NoError(t, first.Save(ctx, dir))

	second := newTestIndex(t, 2, distance.MetricEuclidean)
	require.NoError(t, second.Insert(ctx, 2, []float32{2, 2}))
	require.NoError(t, second.Save(ctx, dir))

	loaded, err := Load(ctx, dir, 2, distance.MetricEuclidean)
	require.NoError(t, err)
	defer loaded.Close()
	assert.False(t, loaded.Contains(1))
	assert.True(t, loaded.Contains(2))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files are left behind")
}
