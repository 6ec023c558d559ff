// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authgate/internal/audit"
	"authgate/internal/gateway"
	gatewayHandler "authgate/internal/gateway/handler"
	"authgate/internal/identity"
	"authgate/internal/oauth"
	"authgate/internal/platform/config"
	"authgate/internal/platform/health"
	"authgate/internal/platform/httpserver"
	"authgate/internal/platform/logger"
	"authgate/internal/platform/metrics"
	"authgate/internal/platform/tracer"
	"authgate/internal/ratelimit"
	"authgate/internal/session"
	httptransport "authgate/internal/transport/http"
)

func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log.Info("initializing authgate",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"oauth_configured", cfg.OAuth.Configured(),
	)

	m := metrics.New()

	sessions := session.NewInMemoryStore(session.WithTTL(cfg.SessionTTL))
	registry := identity.NewInMemoryRegistry()
	seedDevUsers(cfg, registry, log)

	auditTrail := audit.NewInMemoryStore()
	recorder := audit.NewRecorder(auditTrail,
		audit.WithAsyncBuffer(cfg.AuditBufferSize),
		audit.WithRecorderLogger(log),
	)
	defer recorder.Close()

	lockout := ratelimit.New(
		ratelimit.WithThreshold(cfg.LockoutThreshold),
		ratelimit.WithWindow(cfg.LockoutWindow),
	)

	gwOpts := []gateway.Option{
		gateway.WithLogger(log),
		gateway.WithMetrics(m),
		gateway.WithLockout(lockout),
		gateway.WithTracer(tracer.NewOTel()),
	}
	if cfg.OAuth.Configured() {
		delegate, err := oauth.New(oauth.Provider{
			Domain:       cfg.OAuth.Domain,
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			CallbackURL:  cfg.OAuth.CallbackURL,
			Audience:     cfg.OAuth.Audience,
		},
			oauth.WithExchangeTimeout(cfg.ExchangeTimeout),
			oauth.WithLogger(log),
			oauth.WithTracer(tracer.NewOTel()),
		)
		if err != nil {
			log.Error("invalid oauth provider configuration", "error", err)
			os.Exit(1)
		}
		gwOpts = append(gwOpts, gateway.WithDelegate(delegate))
	} else {
		log.Warn("oauth provider not configured, delegated login disabled")
	}

	gw, err := gateway.New(sessions, identity.NewVerifier(registry), recorder, gwOpts...)
	if err != nil {
		log.Error("failed to build gateway service", "error", err)
		os.Exit(1)
	}

	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		log.Error("invalid trusted proxy configuration", "error", err)
		os.Exit(1)
	}

	healthHandler := health.New(cfg.Environment)

	router := httptransport.NewRouter(
		gatewayHandler.New(gw, log, cfg.CookieName, cfg.SessionTTL),
		healthHandler,
		httptransport.RouterConfig{
			Logger:         log,
			TrustedProxies: proxies,
			Metrics:        m,
		},
	)

	// Background sweep of expired sessions.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cleanup, err := session.NewCleanup(sessions, session.WithCleanupLogger(log))
	if err != nil {
		log.Error("failed to build session cleanup", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := cleanup.Start(ctx); err != nil {
			log.Error("session cleanup stopped", "error", err)
		}
	}()

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	log.Info("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

// seedDevUsers registers the development accounts so local login works out
// of the box. Production deployments provision identities some other way.
func seedDevUsers(cfg config.Server, registry *identity.InMemoryRegistry, log *slog.Logger) {
	if cfg.Environment != "development" {
		return
	}
	if _, err := registry.Register("admin@example.com", "admin123", "Administrator"); err != nil {
		log.Warn("failed to seed development user", "error", err)
		return
	}
	log.Info("seeded development user", "email", "admin@example.com")
}
