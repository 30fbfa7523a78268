package vecgraph

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operational metrics from an Index.
// Implement it to integrate with a monitoring system; metrics/prom provides
// a Prometheus implementation.
type MetricsCollector interface {
	// RecordInsert is called after each single insert.
	RecordInsert(duration time.Duration, err error)

	// RecordBatchInsert is called after each batch insert. count is the
	// batch size, inserted the number of new ids.
	RecordBatchInsert(count, inserted int, duration time.Duration, err error)

	// RecordSearch is called after each search.
	RecordSearch(k int, exact bool, duration time.Duration, err error)

	// RecordRemove is called after each remove.
	RecordRemove(found bool, duration time.Duration)

	// RecordVacuum is called after each rebuild. reclaimed is the number of
	// tombstones dropped.
	RecordVacuum(reclaimed int, duration time.Duration, err error)
}

// NoopMetricsCollector discards all metrics.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error) {}
func (NoopMetricsCollector) RecordBatchInsert(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordSearch(int, bool, time.Duration, error) {}
func (NoopMetricsCollector) RecordRemove(bool, time.Duration) {}
func (NoopMetricsCollector) RecordVacuum(int, time.Duration, error) {}

// BasicMetricsCollector keeps in-memory counters. Useful for debugging and
// tests without external dependencies.
type BasicMetricsCollector struct {
	InsertCount      atomic.Int64
	InsertErrors     atomic.Int64
	InsertTotalNanos atomic.Int64
	BatchCount       atomic.Int64
	BatchItems       atomic.Int64
	BatchInserted    atomic.Int64
	BatchErrors      atomic.Int64
	SearchCount      atomic.Int64
	SearchExact      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	RemoveCount      atomic.Int64
	RemoveMisses     atomic.Int64
	VacuumCount      atomic.Int64
	VacuumErrors     atomic.Int64
	VacuumReclaimed  atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordBatchInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatchInsert(count, inserted int, _ time.Duration, err error) {
	b.BatchCount.Add(1)
	b.BatchItems.Add(int64(count))
	b.BatchInserted.Add(int64(inserted))
	if err != nil {
		b.BatchErrors.Add(1)
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ int, exact bool, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if exact {
		b.SearchExact.Add(1)
	}
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(found bool, _ time.Duration) {
	b.RemoveCount.Add(1)
	if !found {
		b.RemoveMisses.Add(1)
	}
}

// RecordVacuum implements MetricsCollector.
func (b *BasicMetricsCollector) RecordVacuum(reclaimed int, _ time.Duration, err error) {
	b.VacuumCount.Add(1)
	if err != nil {
		b.VacuumErrors.Add(1)
		return
	}
	b.VacuumReclaimed.Add(int64(reclaimed))
}

// GetStats returns a snapshot of the counters.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:     b.InsertCount.Load(),
		InsertErrors:    b.InsertErrors.Load(),
		InsertAvgNanos:  avg(b.InsertTotalNanos.Load(), b.InsertCount.Load()),
		BatchCount:      b.BatchCount.Load(),
		BatchItems:      b.BatchItems.Load(),
		BatchInserted:   b.BatchInserted.Load(),
		BatchErrors:     b.BatchErrors.Load(),
		SearchCount:     b.SearchCount.Load(),
		SearchExact:     b.SearchExact.Load(),
		SearchErrors:    b.SearchErrors.Load(),
		SearchAvgNanos:  avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		RemoveCount:     b.RemoveCount.Load(),
		RemoveMisses:    b.RemoveMisses.Load(),
		VacuumCount:     b.VacuumCount.Load(),
		VacuumErrors:    b.VacuumErrors.Load(),
		VacuumReclaimed: b.VacuumReclaimed.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector.
type BasicMetricsStats struct {
	InsertCount     int64
	InsertErrors    int64
	InsertAvgNanos  int64
	BatchCount      int64
	BatchItems      int64
	BatchInserted   int64
	BatchErrors     int64
	SearchCount     int64
	SearchExact     int64
	SearchErrors    int64
	SearchAvgNanos  int64
	RemoveCount     int64
	RemoveMisses    int64
	VacuumCount     int64
	VacuumErrors    int64
	VacuumReclaimed int64
}
