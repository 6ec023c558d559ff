// Package config loads process configuration from the environment so main
// stays lean. Only presence is validated here; the OAuth provider performs
// its own completeness check before first use.
package config

import (
	"net/netip"
	"time"

	"github.com/caarlos0/env/v11"

	dErrors "authgate/pkg/domain-errors"
)

// Server captures HTTP server and gateway configuration.
type Server struct {
	Addr        string        `env:"AUTHGATE_ADDR" envDefault:":8080"`
	Environment string        `env:"AUTHGATE_ENV" envDefault:"development"`
	CookieName  string        `env:"SESSION_COOKIE_NAME" envDefault:"authgate_session"`
	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// Identity provider settings. All of Domain, ClientID, ClientSecret and
	// CallbackURL must be set for the OAuth flow to come up; local login
	// works without them.
	OAuth OAuthProvider `envPrefix:""`

	// Audit sink tuning.
	AuditBufferSize int `env:"AUDIT_BUFFER_SIZE" envDefault:"256"`

	// Login lockout tuning.
	LockoutThreshold int           `env:"LOGIN_LOCKOUT_THRESHOLD" envDefault:"10"`
	LockoutWindow    time.Duration `env:"LOGIN_LOCKOUT_WINDOW" envDefault:"15m"`

	// ExchangeTimeout bounds the authorization-code exchange with the IdP.
	ExchangeTimeout time.Duration `env:"OAUTH_EXCHANGE_TIMEOUT" envDefault:"10s"`

	// TrustedProxies lists CIDR prefixes allowed to set forwarding headers.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

// TrustedProxyPrefixes parses the configured proxy CIDRs. A bad entry is a
// startup error rather than a silently ignored one.
func (s Server) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(s.TrustedProxies))
	for _, raw := range s.TrustedProxies {
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid trusted proxy prefix: "+raw)
		}
		prefixes = append(prefixes, p)
	}
	return prefixes, nil
}

// OAuthProvider holds the external IdP settings, named after the upstream
// Auth0-style deployment this gateway fronts.
type OAuthProvider struct {
	Domain       string `env:"AUTH0_DOMAIN"`
	ClientID     string `env:"AUTH0_CLIENT_ID"`
	ClientSecret string `env:"AUTH0_CLIENT_SECRET"`
	CallbackURL  string `env:"AUTH0_CALLBACK_URL"`
	Audience     string `env:"AUTH0_AUDIENCE"`
}

// Configured reports whether all required provider fields are present.
func (p OAuthProvider) Configured() bool {
	return p.Domain != "" && p.ClientID != "" && p.ClientSecret != "" && p.CallbackURL != ""
}

// FromEnv builds a Server config from environment variables.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not parse environment")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	return cfg, nil
}
