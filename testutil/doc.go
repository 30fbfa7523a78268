// Package testutil provides testing utilities for vecgraph.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random vectors, computing exact
// nearest neighbors, and verifying search recall.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.UniformVectors(1000, 128)
//	clustered := rng.ClusteredVectors(1000, 128, 10, 0.05)
//
// # Exact Search (Ground Truth)
//
//	truth := testutil.ExactTopK(query, vecs, k, space)
//
// # Recall Verification
//
//	recall := testutil.ComputeRecall(truth, approx)
package testutil
