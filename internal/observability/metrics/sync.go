// Package metrics provides detection sync metrics for observability
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics contains Prometheus metrics for detection sync runs
type SyncMetrics struct {
	registry *prometheus.Registry

	runsTotal           *prometheus.CounterVec
	runDuration         prometheus.Histogram
	detectionsProcessed prometheus.Counter
	speciesAdded        prometheus.Counter
	pagesTotal          prometheus.Counter
	enrichmentFailures  prometheus.Counter
	pendingSpecies      prometheus.Gauge
	watermarkGauge      prometheus.Gauge
}

// NewSyncMetrics creates and registers new sync metrics
func NewSyncMetrics(registry *prometheus.Registry) (*SyncMetrics, error) {
	m := &SyncMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *SyncMetrics) initMetrics() {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bwsync_sync_runs_total",
			Help: "Total number of detection sync runs",
		},
		[]string{"status"}, // status: success, error, cancelled
	)

	m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "bwsync_sync_run_duration_seconds",
		Help: "Time taken by a detection sync run",
		// 100ms to ~27 minutes
		Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount15),
	})

	m.detectionsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bwsync_detections_processed_total",
		Help: "Total number of detections counted by sync runs",
	})

	m.speciesAdded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bwsync_species_added_total",
		Help: "Total number of species rows created",
	})

	m.pagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bwsync_detection_pages_total",
		Help: "Total number of detection pages walked",
	})

	m.enrichmentFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bwsync_enrichment_failures_total",
		Help: "Total number of failed species enrichments",
	})

	m.pendingSpecies = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bwsync_pending_species",
		Help: "Species awaiting enrichment retry after the last run",
	})

	m.watermarkGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bwsync_watermark_timestamp_seconds",
		Help: "Unix time of the detection watermark",
	})
}

// Describe implements the Collector interface
func (m *SyncMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.runsTotal.Describe(ch)
	m.runDuration.Describe(ch)
	m.detectionsProcessed.Describe(ch)
	m.speciesAdded.Describe(ch)
	m.pagesTotal.Describe(ch)
	m.enrichmentFailures.Describe(ch)
	m.pendingSpecies.Describe(ch)
	m.watermarkGauge.Describe(ch)
}

// Collect implements the Collector interface
func (m *SyncMetrics) Collect(ch chan<- prometheus.Metric) {
	m.runsTotal.Collect(ch)
	m.runDuration.Collect(ch)
	m.detectionsProcessed.Collect(ch)
	m.speciesAdded.Collect(ch)
	m.pagesTotal.Collect(ch)
	m.enrichmentFailures.Collect(ch)
	m.pendingSpecies.Collect(ch)
	m.watermarkGauge.Collect(ch)
}

// SyncRun is the subset of a run summary the metrics record.
type SyncRun struct {
	Status              string
	Duration            time.Duration
	DetectionsProcessed int
	NewSpeciesAdded     int
	Pages               int
	EnrichmentFailures  int
	PendingSpecies      int
	Watermark           *time.Time
}

// RecordRun records the outcome of one sync run.
func (m *SyncMetrics) RecordRun(run SyncRun) {
	m.runsTotal.WithLabelValues(run.Status).Inc()
	m.runDuration.Observe(run.Duration.Seconds())
	m.detectionsProcessed.Add(float64(run.DetectionsProcessed))
	m.speciesAdded.Add(float64(run.NewSpeciesAdded))
	m.pagesTotal.Add(float64(run.Pages))
	m.enrichmentFailures.Add(float64(run.EnrichmentFailures))
	if run.Status == StatusSuccess {
		m.pendingSpecies.Set(float64(run.PendingSpecies))
	}
	if run.Watermark != nil {
		m.watermarkGauge.Set(float64(run.Watermark.Unix()))
	}
}
