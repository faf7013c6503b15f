package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the API collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	authEvents        *prometheus.CounterVec
	rateLimitExceeded *prometheus.CounterVec
	mailFailures      *prometheus.CounterVec
	maintenanceTasks  *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_events_total",
			Help: "Authentication flow outcomes.",
		}, []string{"event", "outcome"}),
		rateLimitExceeded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_exceeded_total",
			Help: "Requests rejected by a rate limiter.",
		}, []string{"route"}),
		mailFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mail_dispatch_failures_total",
			Help: "Transactional emails that could not be sent.",
		}, []string{"kind"}),
		maintenanceTasks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "maintenance_tasks_total",
			Help: "Maintenance tasks processed by type and outcome.",
		}, []string{"type", "outcome"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) AuthEvent(event string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.authEvents.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) RateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimitExceeded.WithLabelValues(route).Inc()
}

func (m *Metrics) MailFailed(kind string) {
	if m == nil {
		return
	}
	m.mailFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) MaintenanceTask(taskType string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.maintenanceTasks.WithLabelValues(taskType, outcome).Inc()
}
