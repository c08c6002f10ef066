package worker

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricJobsTotal      = "heatmap_jobs_total"
	MetricJobDuration    = "heatmap_job_duration_seconds"
	MetricCellsComputed  = "heatmap_cells_computed_total"
	MetricJobsReclaimed  = "heatmap_jobs_reclaimed_total"
	MetricChunksTotal    = "heatmap_chunks_total"
	MetricChunkErrors    = "heatmap_chunk_errors_total"
	MetricActiveJobs     = "heatmap_active_jobs"
)

// Status label values for job completion.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics contains Prometheus metrics for the worker loop. All operations
// are thread-safe.
type Metrics struct {
	jobsTotal     *prometheus.CounterVec
	jobDuration   prometheus.Histogram
	cellsComputed prometheus.Counter
	jobsReclaimed prometheus.Counter
	chunksTotal   prometheus.Counter
	chunkErrors   prometheus.Counter
	activeJobs    prometheus.Gauge
}

// NewMetrics creates a Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a
// registry.
func NewMetrics() *Metrics {
	return &Metrics{
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricJobsTotal,
				Help: "Total number of heatmap jobs finished by status",
			},
			[]string{"status"},
		),
		jobDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricJobDuration,
				Help:    "Histogram of wall time spent driving one job before it completed or yielded",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		cellsComputed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricCellsComputed,
				Help: "Total number of heat cells computed and persisted",
			},
		),
		jobsReclaimed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricJobsReclaimed,
				Help: "Total number of stale running jobs reset to pending",
			},
		),
		chunksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricChunksTotal,
				Help: "Total number of grid chunks processed",
			},
		),
		chunkErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricChunkErrors,
				Help: "Total number of chunk processing failures",
			},
		),
		activeJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: MetricActiveJobs,
				Help: "Number of jobs this worker is currently driving",
			},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.jobsTotal,
		m.jobDuration,
		m.cellsComputed,
		m.jobsReclaimed,
		m.chunksTotal,
		m.chunkErrors,
		m.activeJobs,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncJobsTotal increments the finished-jobs counter for a status.
func (m *Metrics) IncJobsTotal(status string) {
	m.jobsTotal.WithLabelValues(status).Inc()
}

// ObserveJobDuration records how long one job run took in seconds.
func (m *Metrics) ObserveJobDuration(seconds float64) {
	m.jobDuration.Observe(seconds)
}

// AddCellsComputed adds to the computed-cells counter.
func (m *Metrics) AddCellsComputed(n int) {
	m.cellsComputed.Add(float64(n))
}

// AddJobsReclaimed adds to the reclaimed-jobs counter.
func (m *Metrics) AddJobsReclaimed(n int) {
	m.jobsReclaimed.Add(float64(n))
}

// IncChunks increments the processed-chunks counter.
func (m *Metrics) IncChunks() {
	m.chunksTotal.Inc()
}

// IncChunkErrors increments the chunk-failure counter.
func (m *Metrics) IncChunkErrors() {
	m.chunkErrors.Inc()
}

// SetActiveJobs sets the in-flight jobs gauge.
func (m *Metrics) SetActiveJobs(n int) {
	m.activeJobs.Set(float64(n))
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.jobsTotal,
		m.jobDuration,
		m.cellsComputed,
		m.jobsReclaimed,
		m.chunksTotal,
		m.chunkErrors,
		m.activeJobs,
	}
}
