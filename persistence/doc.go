// Package persistence encodes index artifacts and writes them atomically.
//
// Every artifact starts with a fixed little-endian header that records the
// kind of payload, its compression, the vector dimension and metric, and a
// CRC32 over the uncompressed payload. Loads verify all of it before a single
// byte of payload is decoded.
//
// Directories are written with [AtomicSaveToDir]: each file goes to a temp
// file in the target directory, is synced, then all temp files are renamed
// into place and the directory is synced.
package persistence
