package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns a private Prometheus registry with HTTP and approval workflow collectors.
// All methods are safe on a nil receiver.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	submissions     *prometheus.CounterVec
	fanoutRows      prometheus.Histogram
	decisions       *prometheus.CounterVec
	reopens         prometheus.Counter
	trackReads      *prometheus.CounterVec
	exports         *prometheus.CounterVec
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ndc_submissions_total",
		Help: "NDC submissions by outcome",
	}, []string{"outcome"})

	fanoutRows := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ndc_fanout_approval_rows",
		Help:    "Approval rows created per submission",
		Buckets: []float64{1, 2, 4, 8, 16, 32},
	})

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ndc_decisions_total",
		Help: "Approval decisions recorded by decision",
	}, []string{"decision"})

	reopens := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ndc_review_reopens_total",
		Help: "Rejected approvals sent back for review",
	})

	trackReads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ndc_tracking_reads_total",
		Help: "Approval progress computations by overall status",
	}, []string{"overall_status"})

	exports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ndc_exports_total",
		Help: "Exports generated by format",
	}, []string{"format"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, submissions, fanoutRows, decisions, reopens, trackReads, exports, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		submissions:     submissions,
		fanoutRows:      fanoutRows,
		decisions:       decisions,
		reopens:         reopens,
		trackReads:      trackReads,
		exports:         exports,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordSubmission counts a submission outcome and, on success, the fan-out size.
func (m *MetricsService) RecordSubmission(outcome string, approvalRows int) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
	if approvalRows > 0 {
		m.fanoutRows.Observe(float64(approvalRows))
	}
}

// RecordDecision counts an approve/reject decision.
func (m *MetricsService) RecordDecision(decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision).Inc()
}

// RecordReopen counts a review reopen.
func (m *MetricsService) RecordReopen() {
	if m == nil {
		return
	}
	m.reopens.Inc()
}

// RecordTrack counts a progress computation.
func (m *MetricsService) RecordTrack(overallStatus string) {
	if m == nil {
		return
	}
	m.trackReads.WithLabelValues(overallStatus).Inc()
}

// RecordExport counts a generated export.
func (m *MetricsService) RecordExport(format string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format).Inc()
}
