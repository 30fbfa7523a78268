// Package vecgraph provides an embeddable approximate nearest-neighbor index
// over float32 vectors keyed by uint64 ids.
//
// The index is a hierarchical navigable small-world graph. Removing an id
// leaves a tombstone that searches skip; Vacuum rebuilds the graph from the
// live vectors once tombstones pile up.
//
// # Quick Start
//
//	ctx := context.Background()
//	ix, _ := vecgraph.New(384, distance.MetricCosine)
//	_ = ix.Insert(ctx, 42, embedding)
//	hits, _ := ix.Search(ctx, query, 10)
//
// # Bulk Loading
//
// InsertBatch links records in parallel and leaves the graph in a
// construction mode that tolerates over-full neighbor lists. Call
// PrepareForSearch when loading is done:
//
//	n, _ := ix.InsertBatch(ctx, records)
//	_ = ix.PrepareForSearch(ctx)
//
// # Search Quality
//
// SearchWithQuality maps a preset to the beam width ef:
//
//	QualityFast       max(64, 2k)
//	QualityBalanced   max(128, 4k)
//	QualityAccurate   max(256, 8k)
//	QualityCustom(ef) max(ef, k)
//	QualityPerfect    exhaustive scan
//
// Collections with at most 100 live ids are always scanned exhaustively when
// raw vectors are available. SearchWithRerank trades between the two by
// re-scoring a larger approximate candidate set exactly.
//
// # Persistence
//
// Save writes graph.hnsw and ids.map into a directory; SaveTo uploads them to
// any blobstore.Store (local, in-memory, S3, MinIO). Load and LoadFrom
// verify the dimension and metric recorded in the artifact headers.
package vecgraph
