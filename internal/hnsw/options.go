package hnsw

import (
	"github.com/hupe1980/vecgraph/distance"
	"github.com/hupe1980/vecgraph/internal/vectorstore"
)

const (
	// mmax0Multiplier is the multiplier for calculating maximum connections at layer 0.
	mmax0Multiplier = 2

	// minimumM is the minimum valid value for M.
	minimumM = 2

	// DefaultM is the default number of bidirectional links.
	DefaultM = 16

	// DefaultEFConstruction is the default beam width during insertion.
	DefaultEFConstruction = 200

	// DefaultMaxElements is the default capacity hint.
	DefaultMaxElements = 1024

	// DefaultAlpha reproduces classical HNSW pruning.
	DefaultAlpha = 1.0
)

// Options represents the options for configuring a Graph.
type Options struct {
	Dimension      int
	M              int
	EFConstruction int
	MaxElements    int
	Alpha          float32
	Metric         distance.Metric
	Kernel         distance.Kernel
	// Seed initializes the layer generator. Zero picks a time-based seed.
	Seed   uint64
	Memory vectorstore.MemoryReserver
}

// DefaultOptions contains the default options for a Graph.
var DefaultOptions = Options{
	M:              DefaultM,
	EFConstruction: DefaultEFConstruction,
	MaxElements:    DefaultMaxElements,
	Alpha:          DefaultAlpha,
	Metric:         distance.MetricEuclidean,
	Kernel:         distance.KernelAuto,
}
