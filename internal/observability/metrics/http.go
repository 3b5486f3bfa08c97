// Package metrics provides outbound HTTP client metrics for observability
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics contains Prometheus metrics for outbound API requests
type HTTPMetrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestErrors   *prometheus.CounterVec
}

// NewHTTPMetrics creates and registers new HTTP client metrics
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *HTTPMetrics) initMetrics() {
	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bwsync_http_client_requests_total",
			Help: "Total number of outbound HTTP requests",
		},
		[]string{"client", "host", "method", "status_code"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bwsync_http_client_request_duration_seconds",
			Help:    "Time taken by outbound HTTP requests until headers arrive",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"client", "host"},
	)

	m.requestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bwsync_http_client_request_errors_total",
			Help: "Total number of outbound HTTP requests that failed without a response",
		},
		[]string{"client", "host"},
	)
}

// Describe implements the Collector interface
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.requestsTotal.Describe(ch)
	m.requestDuration.Describe(ch)
	m.requestErrors.Describe(ch)
}

// Collect implements the Collector interface
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	m.requestsTotal.Collect(ch)
	m.requestDuration.Collect(ch)
	m.requestErrors.Collect(ch)
}

// RecordRequest records one completed outbound request.
func (m *HTTPMetrics) RecordRequest(client string, req *http.Request, resp *http.Response, err error, elapsed time.Duration) {
	host := ""
	if req != nil && req.URL != nil {
		host = req.URL.Host
	}
	m.requestDuration.WithLabelValues(client, host).Observe(elapsed.Seconds())
	if err != nil || resp == nil {
		m.requestErrors.WithLabelValues(client, host).Inc()
		return
	}
	method := http.MethodGet
	if req != nil && req.Method != "" {
		method = req.Method
	}
	m.requestsTotal.WithLabelValues(client, host, method, strconv.Itoa(resp.StatusCode)).Inc()
}
