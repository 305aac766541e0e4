package entstore

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; for
// Prometheus gauges over store contents see StoreCollector.
type MetricsCollector interface {
	// RecordInsert is called after each insert operation.
	// staged reports whether the insert went to the pending tier instead of
	// the main columns.
	RecordInsert(staged bool)

	// RecordDelete is called after each delete operation.
	// found reports whether a live row was actually deleted.
	RecordDelete(found bool)

	// RecordMaintenance is called after each Maintenance run.
	// reclaimed is the number of tombstoned slots present when the run began.
	RecordMaintenance(duration time.Duration, reclaimed int)

	// RecordPrepare is called after a patch builder scan.
	// rows is the number of serialized entries, bytes the shared buffer size.
	RecordPrepare(rows, bytes int, duration time.Duration)

	// RecordApply is called after each patch application, successful or not.
	RecordApply(applied, skipped int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(bool)                          {}
func (NoopMetricsCollector) RecordDelete(bool)                          {}
func (NoopMetricsCollector) RecordMaintenance(time.Duration, int)       {}
func (NoopMetricsCollector) RecordPrepare(int, int, time.Duration)      {}
func (NoopMetricsCollector) RecordApply(int, int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InsertCount       atomic.Int64
	StagedInsertCount atomic.Int64
	DeleteCount       atomic.Int64
	DeleteMissCount   atomic.Int64
	MaintenanceCount  atomic.Int64
	MaintenanceNanos  atomic.Int64
	ReclaimedSlots    atomic.Int64
	PrepareCount      atomic.Int64
	PreparedRows      atomic.Int64
	PreparedBytes     atomic.Int64
	ApplyCount        atomic.Int64
	ApplyErrors       atomic.Int64
	AppliedRows       atomic.Int64
	SkippedRows       atomic.Int64
}

func (c *BasicMetricsCollector) RecordInsert(staged bool) {
	c.InsertCount.Add(1)
	if staged {
		c.StagedInsertCount.Add(1)
	}
}

func (c *BasicMetricsCollector) RecordDelete(found bool) {
	if found {
		c.DeleteCount.Add(1)
	} else {
		c.DeleteMissCount.Add(1)
	}
}

func (c *BasicMetricsCollector) RecordMaintenance(d time.Duration, reclaimed int) {
	c.MaintenanceCount.Add(1)
	c.MaintenanceNanos.Add(int64(d))
	c.ReclaimedSlots.Add(int64(reclaimed))
}

func (c *BasicMetricsCollector) RecordPrepare(rows, bytes int, d time.Duration) {
	c.PrepareCount.Add(1)
	c.PreparedRows.Add(int64(rows))
	c.PreparedBytes.Add(int64(bytes))
}

func (c *BasicMetricsCollector) RecordApply(applied, skipped int, d time.Duration, err error) {
	c.ApplyCount.Add(1)
	c.AppliedRows.Add(int64(applied))
	c.SkippedRows.Add(int64(skipped))
	if err != nil {
		c.ApplyErrors.Add(1)
	}
}
