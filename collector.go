package entstore

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StatsSource yields store stats snapshots. *Store implements it for any
// type parameters.
type StatsSource interface {
	Stats() Stats
}

// StoreCollector exposes a store's shape as Prometheus gauges. Register one
// collector per component store, distinguished by the store label.
//
// Collect reads the store without locking, so either register collectors
// only for externally synchronized stores or scrape from the owning
// goroutine's side of a handoff.
type StoreCollector struct {
	src StatsSource

	liveRows   *prometheus.Desc
	mainSlots  *prometheus.Desc
	tombstones *prometheus.Desc
	pending    *prometheus.Desc
	capacity   *prometheus.Desc
}

// NewStoreCollector creates a collector for the given store, labeled with
// the store's name.
func NewStoreCollector(name string, src StatsSource) *StoreCollector {
	labels := prometheus.Labels{"store": name}
	return &StoreCollector{
		src: src,

		liveRows: prometheus.NewDesc(
			"entstore_live_rows",
			"Number of live rows, committed and pending",
			nil, labels,
		),
		mainSlots: prometheus.NewDesc(
			"entstore_main_slots",
			"Length of the main columns, dead slots included",
			nil, labels,
		),
		tombstones: prometheus.NewDesc(
			"entstore_tombstones",
			"Number of dead slots awaiting compaction or reuse",
			nil, labels,
		),
		pending: prometheus.NewDesc(
			"entstore_pending_inserts",
			"Number of staged inserts awaiting commit",
			nil, labels,
		),
		capacity: prometheus.NewDesc(
			"entstore_capacity",
			"Backing array capacity of the main columns",
			nil, labels,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.liveRows
	ch <- c.mainSlots
	ch <- c.tombstones
	ch <- c.pending
	ch <- c.capacity
}

// Collect implements prometheus.Collector.
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.liveRows, prometheus.GaugeValue, float64(stats.Live))
	ch <- prometheus.MustNewConstMetric(c.mainSlots, prometheus.GaugeValue, float64(stats.MainSlots))
	ch <- prometheus.MustNewConstMetric(c.tombstones, prometheus.GaugeValue, float64(stats.Tombstones))
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(stats.Pending))
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(stats.Capacity))
}
