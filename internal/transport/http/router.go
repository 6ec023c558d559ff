// Package httptransport assembles the HTTP surface: middleware stack, domain
// routes, health checks, and the metrics endpoint.
package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	gatewayHandler "authgate/internal/gateway/handler"
	"authgate/internal/platform/health"
	"authgate/internal/platform/metrics"
	"authgate/internal/platform/middleware"
)

// RouterConfig carries everything the router needs beyond the handlers.
type RouterConfig struct {
	Logger *slog.Logger

	// TrustedProxies are CIDR prefixes whose forwarding headers are honored
	// when resolving the client IP recorded in the audit trail.
	TrustedProxies []netip.Prefix

	// RequestTimeout bounds each request; zero defaults to 30s.
	RequestTimeout time.Duration

	// Metrics enables per-endpoint latency observation when set.
	Metrics *metrics.Metrics
}

// NewRouter wires all public endpoints with the middleware stack.
func NewRouter(gw *gatewayHandler.Handler, healthHandler *health.Handler, cfg RouterConfig) http.Handler {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Metadata(&middleware.MetadataConfig{
		TrustedProxies: cfg.TrustedProxies,
	}))
	if cfg.Metrics != nil {
		r.Use(middleware.Latency(cfg.Metrics.ObserveEndpointLatency))
	}

	gw.Register(r)
	healthHandler.Register(r)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
