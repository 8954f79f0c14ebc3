package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for the console.
type Metrics struct {
	registry *prometheus.Registry

	// Console HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Backend API metrics.
	BackendRequestsTotal     *prometheus.CounterVec
	BackendRequestDuration   *prometheus.HistogramVec
	BackendUnauthorizedTotal prometheus.Counter

	// Auth controller outcomes.
	AuthResultsTotal *prometheus.CounterVec

	// Login throttling.
	LoginThrottledTotal prometheus.Counter

	// Notifications shown or suppressed.
	NotificationsTotal *prometheus.CounterVec

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ovpnadmin_http_requests_total",
			Help: "Total number of console HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ovpnadmin_http_request_duration_seconds",
			Help:    "Console HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		BackendRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ovpnadmin_backend_requests_total",
			Help: "Total number of requests sent to the backend API.",
		}, []string{"route", "method", "status_code"}),

		BackendRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ovpnadmin_backend_request_duration_seconds",
			Help:    "Backend API request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		BackendUnauthorizedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ovpnadmin_backend_unauthorized_total",
			Help: "Backend responses with status 401 that cleared a session.",
		}),

		AuthResultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ovpnadmin_auth_results_total",
			Help: "Auth controller operations by outcome.",
		}, []string{"operation", "result"}),

		LoginThrottledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ovpnadmin_login_throttled_total",
			Help: "Login attempts rejected by the per-client throttle.",
		}),

		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ovpnadmin_notifications_total",
			Help: "Transient notifications by level and whether they were suppressed.",
		}, []string{"level", "suppressed"}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ovpnadmin_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BackendRequestsTotal,
		m.BackendRequestDuration,
		m.BackendUnauthorizedTotal,
		m.AuthResultsTotal,
		m.LoginThrottledTotal,
		m.NotificationsTotal,
		m.ServerStartTime,
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDBPoolCollector registers a custom DB pool stats collector.
func (m *Metrics) RegisterDBPoolCollector(statFunc DBPoolStatFunc) {
	m.registry.MustRegister(NewDBPoolCollector(statFunc))
}

// ObserveHTTP records one console request.
func (m *Metrics) ObserveHTTP(method, pattern string, status int, d time.Duration) {
	if pattern == "" {
		pattern = "unmatched"
	}
	m.HTTPRequestsTotal.WithLabelValues(method, pattern, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pattern).Observe(d.Seconds())
}

// ObserveBackend records one backend API call. status is 0 when no
// response arrived.
func (m *Metrics) ObserveBackend(route, method string, status int, d time.Duration) {
	m.BackendRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.BackendRequestDuration.WithLabelValues(route).Observe(d.Seconds())
	if status == 401 {
		m.BackendUnauthorizedTotal.Inc()
	}
}

// ObserveAuth records the outcome of an auth controller operation.
func (m *Metrics) ObserveAuth(operation string, ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	m.AuthResultsTotal.WithLabelValues(operation, result).Inc()
}

// IncLoginThrottled increments the login throttle rejection counter.
func (m *Metrics) IncLoginThrottled() {
	m.LoginThrottledTotal.Inc()
}

// ObserveNotification records a notification decision.
func (m *Metrics) ObserveNotification(level string, suppressed bool) {
	m.NotificationsTotal.WithLabelValues(level, strconv.FormatBool(suppressed)).Inc()
}
