// Package hnsw implements the multi-layer navigable graph behind the index.
//
// The graph owns a columnar copy of every vector (used only for distance
// computation), a set of Layers holding adjacency, the packed entry point and
// a per-instance xorshift64* generator for layer assignment.
//
// # Features
//
//   - Lock-free reads of neighbor lists (copy-on-write publication)
//   - Sharded per-node write locks
//   - VAMANA-style alpha diversification when selecting neighbors
//   - Construction mode with deferred pruning for bulk loads
//   - Multi-entry beam search for clustered data
//
// # Lock order
//
// Vectors are always fetched before a layer lock is taken and never while
// one is held. The only code that takes layer write locks lives in link.go.
//
// # Parameters
//
//   - M: max connections per node above layer 0 (default: 16), 2*M at layer 0
//   - EFConstruction: beam width while inserting (default: 200)
//   - Alpha: diversification strength (default: 1.0)
//
// # Reference
//
// Malkov & Yashunin, "Efficient and robust approximate nearest neighbor search
// using Hierarchical Navigable Small World graphs", IEEE TPAMI 2018.
package hnsw
