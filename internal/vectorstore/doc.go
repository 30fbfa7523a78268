// Package vectorstore holds the two vector stores of an index.
//
// Columnar is owned by the graph and is used only for distance computation
// during construction and search. Vectors are stored contiguously and the
// backing array is replaced copy-on-write on growth, so readers never take a
// lock.
//
// Aux is the optional auxiliary store keyed by internal index. It keeps the
// caller's original vectors for exact re-ranking, exhaustive scans and
// rebuilds. It is sharded to keep writers on different indices apart.
package vectorstore
