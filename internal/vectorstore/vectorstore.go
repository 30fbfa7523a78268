package vectorstore

import (
	"errors"
)

// ErrWrongDimension is returned when a vector doesn't match the store dimension.
var ErrWrongDimension = errors.New("wrong vector dimension")

// Reader returns the raw vector stored for an internal index.
// Returned slices must not be modified.
type Reader interface {
	Vector(idx uint32) ([]float32, bool)
}

// MemoryReserver accounts for memory held by a store.
type MemoryReserver interface {
	ReserveMemory(bytes int64) error
	ReleaseMemory(bytes int64)
}
