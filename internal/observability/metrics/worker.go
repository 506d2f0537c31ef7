package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	jobsTotal     *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	jobsInFlight  prometheus.Gauge
	queueLag      *prometheus.HistogramVec
	stageDuration *prometheus.HistogramVec
	backendCalls  *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	jobsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixelmend",
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Total processed edit jobs by final status.",
		},
		[]string{"service", "status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pixelmend",
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Edit job processing duration in seconds by final status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60, 90},
		},
		[]string{"service", "status"},
	)
	jobsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pixelmend",
			Subsystem: "worker",
			Name:      "jobs_in_flight",
			Help:      "Number of edit jobs currently being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pixelmend",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between job submission and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pixelmend",
			Subsystem: "worker",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage"},
	)
	backendCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixelmend",
			Subsystem: "worker",
			Name:      "backend_calls_total",
			Help:      "Total AI backend calls by operation and outcome.",
		},
		[]string{"service", "operation", "outcome"},
	)

	registry.MustRegister(jobsTotal, jobDuration, jobsInFlight, queueLag, stageDuration, backendCalls)

	return &WorkerMetrics{
		registry:      registry,
		jobsTotal:     jobsTotal,
		jobDuration:   jobDuration,
		jobsInFlight:  jobsInFlight,
		queueLag:      queueLag,
		stageDuration: stageDuration,
		backendCalls:  backendCalls,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.jobsInFlight.Inc()
}

func (m *WorkerMetrics) FinishJob(service, status string, duration time.Duration) {
	m.jobsInFlight.Dec()
	if status == "" {
		status = "unknown"
	}
	m.jobsTotal.WithLabelValues(service, status).Inc()
	m.jobDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) ObserveStage(service, stage string, duration time.Duration) {
	if stage == "" {
		return
	}
	m.stageDuration.WithLabelValues(service, stage).Observe(duration.Seconds())
}

func (m *WorkerMetrics) RecordBackendCall(service, operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.backendCalls.WithLabelValues(service, operation, outcome).Inc()
}
