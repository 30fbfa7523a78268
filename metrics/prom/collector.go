// Package prom exports index metrics to Prometheus.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hupe1980/vecgraph"
)

// Compile-time check.
var _ vecgraph.MetricsCollector = (*Collector)(nil)

// Options configures a Collector.
type Options struct {
	// Namespace prefixes every metric name. Defaults to "vecgraph".
	Namespace string
	// ConstLabels are attached to every metric, e.g. the index name.
	ConstLabels prometheus.Labels
	// Buckets are the latency histogram buckets in seconds.
	Buckets []float64
}

// Collector implements vecgraph.MetricsCollector with Prometheus metrics.
type Collector struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	batchItems *prometheus.CounterVec
	searchK    prometheus.Histogram
	removed    *prometheus.CounterVec
	reclaimed  prometheus.Counter
}

// New registers the collector's metrics with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer, optFns ...func(o *Options)) *Collector {
	opts := Options{
		Namespace: "vecgraph",
		Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .5, 1, 5, 30},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Collector{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "operations_total",
			Help:        "Index operations by type and outcome.",
			ConstLabels: opts.ConstLabels,
		}, []string{"op", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "operation_duration_seconds",
			Help:        "Latency of index operations.",
			ConstLabels: opts.ConstLabels,
			Buckets:     opts.Buckets,
		}, []string{"op", "status"}),
		batchItems: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "batch_items_total",
			Help:        "Records submitted to batch inserts, by whether they were new.",
			ConstLabels: opts.ConstLabels,
		}, []string{"result"}),
		searchK: f.NewHistogram(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "search_k",
			Help:        "Requested result count per search.",
			ConstLabels: opts.ConstLabels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 12),
		}),
		removed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "removes_total",
			Help:        "Remove calls by whether the id was live.",
			ConstLabels: opts.ConstLabels,
		}, []string{"found"}),
		reclaimed: f.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "vacuum_reclaimed_total",
			Help:        "Tombstones dropped by vacuum.",
			ConstLabels: opts.ConstLabels,
		}),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	s := status(err)
	c.operations.WithLabelValues(op, s).Inc()
	c.duration.WithLabelValues(op, s).Observe(d.Seconds())
}

// RecordInsert implements vecgraph.MetricsCollector.
func (c *Collector) RecordInsert(d time.Duration, err error) {
	c.observe("insert", d, err)
}

// RecordBatchInsert implements vecgraph.MetricsCollector.
func (c *Collector) RecordBatchInsert(count, inserted int, d time.Duration, err error) {
	c.observe("batch_insert", d, err)
	c.batchItems.WithLabelValues("inserted").Add(float64(inserted))
	if skipped := count - inserted; skipped > 0 {
		c.batchItems.WithLabelValues("skipped").Add(float64(skipped))
	}
}

// RecordSearch implements vecgraph.MetricsCollector.
func (c *Collector) RecordSearch(k int, exact bool, d time.Duration, err error) {
	op := "search"
	if exact {
		op = "search_exact"
	}
	c.observe(op, d, err)
	if err == nil {
		c.searchK.Observe(float64(k))
	}
}

// RecordRemove implements vecgraph.MetricsCollector.
func (c *Collector) RecordRemove(found bool, d time.Duration) {
	c.observe("remove", d, nil)
	if found {
		c.removed.WithLabelValues("true").Inc()
	} else {
		c.removed.WithLabelValues("false").Inc()
	}
}

// RecordVacuum implements vecgraph.MetricsCollector.
func (c *Collector) RecordVacuum(reclaimed int, d time.Duration, err error) {
	c.observe("vacuum", d, err)
	if err == nil {
		c.reclaimed.Add(float64(reclaimed))
	}
}

// IndexGauges exports point-in-time index state.
type IndexGauges struct {
	live       prometheus.GaugeFunc
	tombstones prometheus.GaugeFunc
}

// StatsSource is satisfied by *vecgraph.Index.
type StatsSource interface {
	Len() int
	TombstoneCount() int
}

// RegisterIndex exports live and tombstone counts of src, sampled on scrape.
func RegisterIndex(reg prometheus.Registerer, src StatsSource, optFns ...func(o *Options)) *IndexGauges {
	opts := Options{Namespace: "vecgraph"}
	for _, fn := range optFns {
		fn(&opts)
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &IndexGauges{
		live: f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "live_vectors",
			Help:        "Live ids in the index.",
			ConstLabels: opts.ConstLabels,
		}, func() float64 { return float64(src.Len()) }),
		tombstones: f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "tombstones",
			Help:        "Removed ids whose nodes are still in the graph.",
			ConstLabels: opts.ConstLabels,
		}, func() float64 { return float64(src.TombstoneCount()) }),
	}
}
