package searcher

import "sync"

// Searcher is a reusable execution context for one beam search.
//
// Searcher is NOT thread-safe. It is owned by a single goroutine between
// Get and Put.
type Searcher struct {
	// Visited tracks nodes whose distance has been computed.
	Visited *VisitedSet

	// Frontier is a min-heap of candidates still to be expanded.
	Frontier *PriorityQueue

	// Results is a bounded max-heap holding the best ef nodes found so far.
	Results *PriorityQueue

	// Scratch receives the drained, sorted results.
	Scratch []Item

	// Neighbors is a reusable buffer for neighbor snapshots.
	Neighbors []uint32
}

var pool = sync.Pool{
	New: func() any {
		return New(1024, 128)
	},
}

// New creates a searcher with the given initial capacities.
func New(visitedCap, queueCap int) *Searcher {
	return &Searcher{
		Visited:   NewVisitedSet(visitedCap),
		Frontier:  NewPriorityQueue(false),
		Results:   NewPriorityQueue(true),
		Scratch:   make([]Item, 0, queueCap),
		Neighbors: make([]uint32, 0, 64),
	}
}

// Get returns a reset Searcher from the pool.
func Get() *Searcher {
	s := pool.Get().(*Searcher)
	s.Reset()
	return s
}

// Put returns a Searcher to the pool.
func Put(s *Searcher) {
	pool.Put(s)
}

// Reset clears the searcher state for reuse.
func (s *Searcher) Reset() {
	s.Visited.Reset()
	s.Frontier.Reset()
	s.Results.Reset()
	s.Scratch = s.Scratch[:0]
	s.Neighbors = s.Neighbors[:0]
}
