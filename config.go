package vecgraph

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/vecgraph/distance"
	"github.com/hupe1980/vecgraph/persistence"
	"github.com/hupe1980/vecgraph/resource"
)

// Config is the file form of an index configuration.
//
//	dimension: 384
//	metric: cosine
//	m: 16
//	ef_construction: 200
//	compression: zstd
//	resources:
//	  memory_limit_bytes: 1073741824
type Config struct {
	Dimension          int              `yaml:"dimension"`
	Metric             string           `yaml:"metric"`
	M                  int              `yaml:"m"`
	EFConstruction     int              `yaml:"ef_construction"`
	MaxElements        int              `yaml:"max_elements"`
	Alpha              float32          `yaml:"alpha"`
	Seed               uint64           `yaml:"seed"`
	Kernel             string           `yaml:"kernel"`
	AuxiliaryVectors   *bool            `yaml:"auxiliary_vectors"`
	VacuumThreshold    float64          `yaml:"vacuum_threshold"`
	ExactScanThreshold *int             `yaml:"exact_scan_threshold"`
	Compression        string           `yaml:"compression"`
	LogLevel           string           `yaml:"log_level"`
	LogFormat          string           `yaml:"log_format"`
	Resources          *resource.Config `yaml:"resources"`
}

// LoadConfig decodes a YAML configuration. Unknown keys are rejected.
func LoadConfig(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfigFile reads a YAML configuration from path.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadConfig(f)
}

// Validate checks the values that can be checked without building an index.
func (c *Config) Validate() error {
	if c.Dimension < 0 {
		return &ErrInvalidDimension{Dimension: c.Dimension}
	}
	if _, err := c.MetricValue(); err != nil {
		return err
	}
	if _, ok := distance.ParseKernel(c.Kernel); !ok {
		return fmt.Errorf("unknown kernel %q", c.Kernel)
	}
	if _, err := persistence.ParseCompression(c.Compression); err != nil {
		return err
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.VacuumThreshold < 0 || c.VacuumThreshold > 1 {
		return fmt.Errorf("vacuum_threshold must be in [0, 1], got %v", c.VacuumThreshold)
	}
	return nil
}

// MetricValue returns the configured metric. Empty means Euclidean.
func (c *Config) MetricValue() (distance.Metric, error) {
	if c.Metric == "" {
		return distance.MetricEuclidean, nil
	}
	return distance.ParseMetric(c.Metric)
}

// Options converts the configuration into index options. Zero values keep
// the defaults.
func (c *Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var opts []Option
	if c.M > 0 {
		opts = append(opts, WithM(c.M))
	}
	if c.EFConstruction > 0 {
		opts = append(opts, WithEFConstruction(c.EFConstruction))
	}
	if c.MaxElements > 0 {
		opts = append(opts, WithMaxElements(c.MaxElements))
	}
	if c.Alpha > 0 {
		opts = append(opts, WithAlpha(c.Alpha))
	}
	if c.Seed != 0 {
		opts = append(opts, WithSeed(c.Seed))
	}
	if c.Kernel != "" {
		k, _ := distance.ParseKernel(c.Kernel)
		opts = append(opts, WithKernel(k))
	}
	if c.AuxiliaryVectors != nil {
		opts = append(opts, WithAuxiliaryVectors(*c.AuxiliaryVectors))
	}
	if c.VacuumThreshold > 0 {
		opts = append(opts, WithVacuumThreshold(c.VacuumThreshold))
	}
	if c.ExactScanThreshold != nil {
		opts = append(opts, WithExactScanThreshold(*c.ExactScanThreshold))
	}
	if c.Compression != "" {
		comp, _ := persistence.ParseCompression(c.Compression)
		opts = append(opts, WithCompression(comp))
	}
	if c.LogLevel != "" || c.LogFormat != "" {
		level, _ := parseLevel(c.LogLevel)
		if strings.EqualFold(c.LogFormat, "json") {
			opts = append(opts, WithLogger(NewJSONLogger(level)))
		} else {
			opts = append(opts, WithLogger(NewTextLogger(level)))
		}
	}
	if c.Resources != nil {
		opts = append(opts, WithResourceController(resource.NewController(*c.Resources)))
	}

	return opts, nil
}

// NewFromConfig creates an index described by c.
func NewFromConfig(c *Config, extra ...Option) (*Index, error) {
	metric, err := c.MetricValue()
	if err != nil {
		return nil, err
	}
	opts, err := c.Options()
	if err != nil {
		return nil, err
	}
	return New(c.Dimension, metric, append(opts, extra...)...)
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
