package hnsw

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecgraph/testutil"
)

// TestConcurrentInserts verifies that multiple inserts can run concurrently without data races.
func TestConcurrentInserts(t *testing.T) {
	const dim, workers, perWorker = 16, 8, 150
	g := newTestGraph(t, dim)
	rng := testutil.NewRNG(21)
	vecs := rng.UniformVectors(workers*perWorker, dim)

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for j := range perWorker {
				i := w*perWorker + j
				assert.NoError(t, g.InsertAt(NodeIndex(i), vecs[i]))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, g.Len())
	assertCaps(t, g, 1)
	assertLayerInvariant(t, g)

	misses := 0
	for i, v := range vecs {
		res, err := g.Search(v, 1, 64, nil)
		require.NoError(t, err)
		if len(res) == 0 || res[0].Node != NodeIndex(i) {
			misses++
		}
	}
	assert.LessOrEqual(t, misses, len(vecs)/50)
}

// TestConcurrentInsertSearch mixes readers and writers on the same graph.
func TestConcurrentInsertSearch(t *testing.T) {
	const dim = 8
	g := newTestGraph(t, dim)
	rng := testutil.NewRNG(23)
	initial := rng.UniformVectors(200, dim)
	for _, v := range initial {
		_, err := g.Insert(v)
		require.NoError(t, err)
	}

	more := rng.UniformVectors(1000, dim)
	queries := rng.UniformVectors(100, dim)

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(more); i += 4 {
				_, err := g.Insert(more[i])
				assert.NoError(t, err)
			}
		}(w)
	}
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for round := range 5 {
				for _, q := range queries {
					res, err := g.SearchMultiEntry(q, 5, 32, 1+round%3, nil)
					assert.NoError(t, err)
					assert.NotEmpty(t, res)
					for i := 1; i < len(res); i++ {
						assert.LessOrEqual(t, res[i-1].Distance, res[i].Distance)
					}
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1200, g.Len())
	assertCaps(t, g, 1)
}

// TestConcurrentStatsDuringInserts walks the layers while nodes land out of
// allocation order.
func TestConcurrentStatsDuringInserts(t *testing.T) {
	const dim, workers, perWorker = 8, 8, 200
	g := newTestGraph(t, dim)
	vecs := testutil.NewRNG(29).UniformVectors(workers*perWorker, dim)

	done := make(chan struct{})
	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			st := g.Stats()
			for _, lv := range st.Levels {
				assert.GreaterOrEqual(t, lv.Edges, 0)
			}
		}
	}()

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			// Interleaved indices so slots are filled below the current length.
			for j := perWorker - 1; j >= 0; j-- {
				i := j*workers + w
				assert.NoError(t, g.InsertAt(NodeIndex(i), vecs[i]))
			}
		}(w)
	}
	wg.Wait()
	close(done)
	readers.Wait()

	assert.Equal(t, workers*perWorker, g.Len())
	assertLayerInvariant(t, g)
}
