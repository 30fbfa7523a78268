// Package searcher provides the pooled scratch state used by graph traversal.
//
// A Searcher owns the two heaps of a beam search (the exploration frontier
// and the bounded result set) plus a visited bitset. Searchers are recycled
// through a sync.Pool so steady-state queries do not allocate.
package searcher
