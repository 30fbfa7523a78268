package vecgraph

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vecgraph/distance"
	"github.com/hupe1980/vecgraph/internal/hnsw"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrVectorsUnavailable is returned when an operation needs raw vectors
	// but the index keeps neither an auxiliary store nor a vector source.
	ErrVectorsUnavailable = errors.New("vectors unavailable: auxiliary vector store disabled")

	// ErrClosed is returned by operations on a closed index.
	ErrClosed = errors.New("index is closed")

	// ErrInvalidQuality is returned for an unknown or malformed quality.
	ErrInvalidQuality = errors.New("invalid search quality")

	// ErrVacuumInProgress is returned when a vacuum is already running.
	ErrVacuumInProgress = errors.New("vacuum already in progress")

	// ErrCorruptIndex is returned when the graph and identifier mapping of a
	// loaded index disagree.
	ErrCorruptIndex = errors.New("graph and identifier mapping disagree")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// ErrMetricMismatch is returned when a persisted index was built with a
// different metric than the one requested on load.
type ErrMetricMismatch struct {
	Expected distance.Metric
	Actual   distance.Metric
}

func (e *ErrMetricMismatch) Error() string {
	return fmt.Sprintf("metric mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// translateError maps graph-level errors onto the public error types.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var dm *hnsw.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual}
	}
	var id *hnsw.ErrInvalidDimension
	if errors.As(err, &id) {
		return &ErrInvalidDimension{Dimension: id.Dimension}
	}

	return err
}
