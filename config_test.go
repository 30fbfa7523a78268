package vecgraph

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecgraph/distance"
	"github.com/hupe1980/vecgraph/persistence"
)

const sampleConfig = `
dimension: 8
metric: cosine
m: 12
ef_construction: 100
alpha: 1.2
seed: 7
kernel: scalar
auxiliary_vectors: false
vacuum_threshold: 0.3
exact_scan_threshold: 0
compression: zstd
log_level: debug
log_format: json
resources:
  memory_limit_bytes: 1048576
  max_background_jobs: 2
`

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Dimension)
	assert.Equal(t, 12, cfg.M)
	require.NotNil(t, cfg.AuxiliaryVectors)
	assert.False(t, *cfg.AuxiliaryVectors)
	require.NotNil(t, cfg.ExactScanThreshold)
	assert.Zero(t, *cfg.ExactScanThreshold)
	require.NotNil(t, cfg.Resources)
	assert.Equal(t, int64(1048576), cfg.Resources.MemoryLimitBytes)

	metric, err := cfg.MetricValue()
	require.NoError(t, err)
	assert.Equal(t, distance.MetricCosine, metric)

	opts, err := cfg.Options()
	require.NoError(t, err)
	o := applyOptions(opts)
	assert.Equal(t, 12, o.m)
	assert.Equal(t, 100, o.efConstruction)
	assert.InDelta(t, 1.2, o.alpha, 1e-6)
	assert.Equal(t, uint64(7), o.seed)
	assert.Equal(t, distance.KernelScalar, o.kernel)
	assert.False(t, o.auxVectors)
	assert.InDelta(t, 0.3, o.vacuumThreshold, 1e-9)
	assert.Zero(t, o.exactScanThreshold)
	assert.Equal(t, persistence.CompressionZSTD, o.compression)
	assert.NotNil(t, o.resources)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"UnknownKey", "dimension: 4\nbogus: 1\n"},
		{"BadMetric", "dimension: 4\nmetric: hamming\n"},
		{"BadKernel", "kernel: avx9000\n"},
		{"BadCompression", "compression: brotli\n"},
		{"BadLogLevel", "log_level: loud\n"},
		{"BadThreshold", "vacuum_threshold: 2\n"},
		{"NegativeDimension", "dimension: -1\n"},
		{"Malformed", "dimension: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(strings.NewReader(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "cosine", cfg.Metric)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewFromConfig(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader("dimension: 3\nmetric: l2\n"))
	require.NoError(t, err)

	ix, err := NewFromConfig(cfg, WithLogger(NoopLogger()))
	require.NoError(t, err)
	defer ix.Close()

	assert.Equal(t, 3, ix.Dimension())
	assert.Equal(t, distance.MetricEuclidean, ix.Metric())
	require.NoError(t, ix.Insert(context.Background(), 1, []float32{1, 2, 3}))

	_, err = NewFromConfig(&Config{})
	var target *ErrInvalidDimension
	assert.ErrorAs(t, err, &target)
}
