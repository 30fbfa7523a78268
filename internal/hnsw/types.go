package hnsw

import (
	"errors"
	"fmt"
)

// NodeIndex is the dense internal address of a node.
type NodeIndex = uint32

// MaxLevel caps the randomly assigned layer of a node.
const MaxLevel = 15

var (
	ErrNodeExists     = errors.New("node index already in use")
	ErrIndexExhausted = errors.New("node index space exhausted")
	ErrBatchMismatch  = errors.New("batch indices and vectors differ in length")
	ErrCorruptGraph   = errors.New("corrupt graph encoding")
)

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// ErrDimensionMismatch indicates a vector of the wrong length.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// SearchResult is a node and its raw distance to the query.
type SearchResult struct {
	Node     NodeIndex
	Distance float32
}

// AcceptFunc decides whether a node may appear in results. Rejected nodes
// are still traversed.
type AcceptFunc func(NodeIndex) bool

// Mode selects how strictly neighbor caps are enforced.
type Mode int32

const (
	// ModeSearch enforces caps on every write.
	ModeSearch Mode = iota
	// ModeConstruction lets lists grow to twice their cap before pruning.
	ModeConstruction
)

func (m Mode) String() string {
	switch m {
	case ModeSearch:
		return "search"
	case ModeConstruction:
		return "construction"
	default:
		return fmt.Sprintf("Mode(%d)", int32(m))
	}
}

// LevelStats describes one layer.
type LevelStats struct {
	Level     int
	Nodes     int
	Edges     int
	AvgDegree float64
}

// Stats describes the graph.
type Stats struct {
	Nodes      int
	NextIndex  uint32
	MaxLevel   int
	EntryPoint NodeIndex
	Mode       Mode
	Parameters map[string]string
	Levels     []LevelStats
}
