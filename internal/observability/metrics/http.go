package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	editSubmitsTotal   *prometheus.CounterVec
	editCancelsTotal   *prometheus.CounterVec
	resendTotal        *prometheus.CounterVec
	uploadBytes        *prometheus.HistogramVec
	rateLimitedTotal   *prometheus.CounterVec
	validationRejected *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixelmend",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pixelmend",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pixelmend",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	editSubmitsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixelmend",
			Subsystem: "edits",
			Name:      "submits_total",
			Help:      "Total accepted edit submissions by processing type.",
		},
		[]string{"service", "type"},
	)
	editCancelsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixelmend",
			Subsystem: "edits",
			Name:      "cancels_total",
			Help:      "Total cancel requests accepted for queued or running jobs.",
		},
		[]string{"service"},
	)
	resendTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixelmend",
			Subsystem: "account",
			Name:      "verification_resend_total",
			Help:      "Total verification resend attempts by outcome.",
		},
		[]string{"service", "outcome"},
	)
	uploadBytes := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pixelmend",
			Subsystem: "edits",
			Name:      "upload_bytes",
			Help:      "Distribution of uploaded image sizes in bytes.",
			Buckets:   prometheus.ExponentialBuckets(64<<10, 2, 9),
		},
		[]string{"service"},
	)
	rateLimitedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixelmend",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the rate limiter.",
		},
		[]string{"service"},
	)
	validationRejected := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixelmend",
			Subsystem: "edits",
			Name:      "validation_rejected_total",
			Help:      "Total submissions rejected before reaching the AI backend.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		editSubmitsTotal,
		editCancelsTotal,
		resendTotal,
		uploadBytes,
		rateLimitedTotal,
		validationRejected,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		editSubmitsTotal:   editSubmitsTotal,
		editCancelsTotal:   editCancelsTotal,
		resendTotal:        resendTotal,
		uploadBytes:        uploadBytes,
		rateLimitedTotal:   rateLimitedTotal,
		validationRejected: validationRejected,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := NewResponseRecorder(w)

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.Status()),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasSuffix(path, "/cancel"):
		return "/v1/edits/{job_id}/cancel"
	case strings.HasPrefix(path, "/v1/edits/"):
		return "/v1/edits/{job_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordEditSubmit(service, processingType string, imageBytes int) {
	if processingType == "" {
		processingType = "unknown"
	}
	m.editSubmitsTotal.WithLabelValues(service, processingType).Inc()
	if imageBytes > 0 {
		m.uploadBytes.WithLabelValues(service).Observe(float64(imageBytes))
	}
}

func (m *HTTPServerMetrics) RecordEditCancel(service string) {
	m.editCancelsTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordResend(service, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.resendTotal.WithLabelValues(service, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordRateLimited(service string) {
	m.rateLimitedTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordValidationRejected(service string) {
	m.validationRejected.WithLabelValues(service).Inc()
}

// ResponseRecorder wraps a ResponseWriter to expose the status code and body
// size after the handler ran. The metrics middleware and the access log share
// one recorder type so a response is only ever wrapped this way once per
// concern.
type ResponseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (w *ResponseRecorder) Status() int { return w.status }

func (w *ResponseRecorder) BytesWritten() int { return w.bytes }

func (w *ResponseRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *ResponseRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *ResponseRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *ResponseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *ResponseRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
