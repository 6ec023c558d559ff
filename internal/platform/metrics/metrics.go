package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	Logins             *prometheus.CounterVec
	LoginFailures      *prometheus.CounterVec
	Logouts            prometheus.Counter
	ActiveSessions     prometheus.Gauge
	ProtectedAccess    prometheus.Counter
	UnauthorizedAccess prometheus.Counter
	ExchangeLatency    prometheus.Histogram
	EndpointLatency    *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		Logins: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_logins_total",
			Help: "Total number of successful logins, labeled by auth method",
		}, []string{"method"}),
		LoginFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_login_failures_total",
			Help: "Total number of failed login attempts, labeled by auth method",
		}, []string{"method"}),
		Logouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "authgate_logouts_total",
			Help: "Total number of logouts",
		}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "authgate_active_sessions",
			Help: "Current number of active sessions",
		}),
		ProtectedAccess: promauto.NewCounter(prometheus.CounterOpts{
			Name: "authgate_protected_access_total",
			Help: "Total number of authorized protected-resource accesses",
		}),
		UnauthorizedAccess: promauto.NewCounter(prometheus.CounterOpts{
			Name: "authgate_unauthorized_access_total",
			Help: "Total number of rejected protected-resource accesses",
		}),
		ExchangeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "authgate_oauth_exchange_latency_seconds",
			Help:    "Latency of the authorization-code exchange with the IdP",
			Buckets: prometheus.DefBuckets,
		}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authgate_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

// IncrementLogins increments the successful login counter for a method.
func (m *Metrics) IncrementLogins(method string) {
	m.Logins.WithLabelValues(method).Inc()
}

// IncrementLoginFailures increments the failed login counter for a method.
func (m *Metrics) IncrementLoginFailures(method string) {
	m.LoginFailures.WithLabelValues(method).Inc()
}

func (m *Metrics) IncrementLogouts() {
	m.Logouts.Inc()
}

func (m *Metrics) IncrementActiveSessions(count int) {
	m.ActiveSessions.Add(float64(count))
}

func (m *Metrics) DecrementActiveSessions(count int) {
	m.ActiveSessions.Sub(float64(count))
}

func (m *Metrics) IncrementProtectedAccess() {
	m.ProtectedAccess.Inc()
}

func (m *Metrics) IncrementUnauthorizedAccess() {
	m.UnauthorizedAccess.Inc()
}

// ObserveExchangeLatency records how long one code exchange took.
func (m *Metrics) ObserveExchangeLatency(durationSeconds float64) {
	m.ExchangeLatency.Observe(durationSeconds)
}

// ObserveEndpointLatency records the latency for a given endpoint.
func (m *Metrics) ObserveEndpointLatency(endpoint string, durationSeconds float64) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(durationSeconds)
}
