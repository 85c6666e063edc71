package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	Registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	emailDeliveries *prometheus.CounterVec
	inboundMessages *prometheus.CounterVec
	jobRuns         *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greenhouse",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "greenhouse",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greenhouse",
			Name:      "http_errors_total",
			Help:      "HTTP error responses by error code.",
		}, []string{"path", "method", "code"}),
		emailDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greenhouse",
			Name:      "email_deliveries_total",
			Help:      "Outbound email delivery attempts by result (sent, retrying, failed).",
		}, []string{"result"}),
		inboundMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greenhouse",
			Name:      "inbound_emails_total",
			Help:      "Inbound emails by channel and outcome.",
		}, []string{"channel", "outcome"}),
		jobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "greenhouse",
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by task and result.",
		}, []string{"task", "result"}),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "greenhouse",
			Name:      "job_duration_seconds",
			Help:      "Scheduled job duration.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"task"}),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordDelivery counts one delivery outcome.
func (m *Metrics) RecordDelivery(result string) {
	if m == nil {
		return
	}
	m.emailDeliveries.WithLabelValues(result).Inc()
}

// RecordInbound counts one inbound email outcome.
func (m *Metrics) RecordInbound(channel, outcome string) {
	if m == nil {
		return
	}
	m.inboundMessages.WithLabelValues(channel, outcome).Inc()
}

// RecordJob counts a job run and its duration.
func (m *Metrics) RecordJob(task string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.jobRuns.WithLabelValues(task, result).Inc()
	m.jobDuration.WithLabelValues(task).Observe(duration.Seconds())
}
