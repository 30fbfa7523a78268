// Package fs abstracts the few filesystem calls the persistence layer makes
// so tests can inject write, sync and rename failures.
//
// Production code uses [Default], which is [LocalFS]. Tests wrap it in a
// [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("graph.hnsw", fs.Fault{FailOnSync: true})
package fs
