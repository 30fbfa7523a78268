package vecgraph

import (
	"github.com/hupe1980/vecgraph/distance"
	"github.com/hupe1980/vecgraph/internal/hnsw"
	"github.com/hupe1980/vecgraph/persistence"
	"github.com/hupe1980/vecgraph/resource"
)

const (
	// DefaultVacuumThreshold is the tombstone ratio above which NeedsVacuum
	// reports true.
	DefaultVacuumThreshold = 0.2

	// DefaultExactScanThreshold is the live count at or below which searches
	// use an exhaustive scan.
	DefaultExactScanThreshold = 100
)

// VectorReader returns the raw vector stored for an external id, typically
// backed by the storage layer that owns the vectors. Returned slices must
// not be modified.
type VectorReader interface {
	Vector(id uint64) ([]float32, bool)
}

type options struct {
	m              int
	efConstruction int
	maxElements    int
	alpha          float32
	seed           uint64
	kernel         distance.Kernel

	auxVectors         bool
	source             VectorReader
	vacuumThreshold    float64
	exactScanThreshold int
	compression        persistence.Compression

	metricsCollector MetricsCollector
	logger           *Logger
	resources        *resource.Controller
}

// Option configures an Index.
type Option func(*options)

func defaultOptions() options {
	return options{
		m:                  hnsw.DefaultM,
		efConstruction:     hnsw.DefaultEFConstruction,
		maxElements:        hnsw.DefaultMaxElements,
		alpha:              hnsw.DefaultAlpha,
		kernel:             distance.KernelAuto,
		auxVectors:         true,
		vacuumThreshold:    DefaultVacuumThreshold,
		exactScanThreshold: DefaultExactScanThreshold,
		compression:        persistence.CompressionLZ4,
		metricsCollector:   NoopMetricsCollector{},
		logger:             NoopLogger(),
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}

// WithM sets the number of links per node above layer 0. Layer 0 keeps
// twice as many.
func WithM(m int) Option {
	return func(o *options) { o.m = m }
}

// WithEFConstruction sets the beam width used while inserting.
func WithEFConstruction(ef int) Option {
	return func(o *options) { o.efConstruction = ef }
}

// WithMaxElements sets the initial capacity hint. The index grows beyond it.
func WithMaxElements(n int) Option {
	return func(o *options) { o.maxElements = n }
}

// WithAlpha sets the diversification factor used by neighbor pruning.
// 1.0 is classical HNSW; larger values keep longer edges.
func WithAlpha(alpha float32) Option {
	return func(o *options) { o.alpha = alpha }
}

// WithSeed fixes the layer assignment seed, making single-threaded builds
// reproducible.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// WithKernel forces a distance kernel set.
func WithKernel(k distance.Kernel) Option {
	return func(o *options) { o.kernel = k }
}

// WithAuxiliaryVectors enables or disables the copy of raw vectors kept for
// exact search, re-ranking and vacuum. Enabled by default.
func WithAuxiliaryVectors(enabled bool) Option {
	return func(o *options) { o.auxVectors = enabled }
}

// WithVectorSource makes exact paths read raw vectors from r instead of the
// auxiliary store. It is usually combined with WithAuxiliaryVectors(false).
func WithVectorSource(r VectorReader) Option {
	return func(o *options) { o.source = r }
}

// WithVacuumThreshold sets the tombstone ratio above which NeedsVacuum
// reports true.
func WithVacuumThreshold(ratio float64) Option {
	return func(o *options) { o.vacuumThreshold = ratio }
}

// WithExactScanThreshold sets the live count at or below which every search
// is answered by an exhaustive scan. Zero disables the fallback.
func WithExactScanThreshold(n int) Option {
	return func(o *options) { o.exactScanThreshold = n }
}

// WithCompression selects the artifact compression used by Save and SaveTo.
func WithCompression(c persistence.Compression) Option {
	return func(o *options) { o.compression = c }
}

// WithMetricsCollector sets a metrics collector.
// If nil is passed, a no-op collector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) { o.metricsCollector = mc }
}

// WithLogger sets a structured logger.
// If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithResourceController bounds memory, concurrent rebuilds and write
// throughput. A nil controller imposes no limits.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) { o.resources = rc }
}
