// Package oauth delegates authentication to an external OpenID Connect
// provider: it builds authorization redirects, exchanges authorization codes
// for identity claims, and builds provider-side logout redirects.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"authgate/internal/platform/tracer"
	dErrors "authgate/pkg/domain-errors"
)

// defaultScope is requested on every authorization redirect; profile and
// email are needed to populate the session identity from the ID token.
const defaultScope = "openid profile email"

const defaultExchangeTimeout = 10 * time.Second

// Provider identifies the upstream OpenID Connect provider. Domain is a bare
// host ("tenant.auth0.com"); a full URL is also accepted, which test
// environments use to point the delegate at a local stand-in.
type Provider struct {
	Domain       string
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Audience     string
}

func (p Provider) validate() error {
	var missing []string
	if p.Domain == "" {
		missing = append(missing, "domain")
	}
	if p.ClientID == "" {
		missing = append(missing, "client id")
	}
	if p.ClientSecret == "" {
		missing = append(missing, "client secret")
	}
	if p.CallbackURL == "" {
		missing = append(missing, "callback url")
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeMisconfiguredProvider,
			fmt.Sprintf("oauth provider is missing: %s", strings.Join(missing, ", ")))
	}
	return nil
}

func (p Provider) baseURL() string {
	if strings.Contains(p.Domain, "://") {
		return strings.TrimSuffix(p.Domain, "/")
	}
	return "https://" + p.Domain
}

// Claims is the identity extracted from a validated ID token.
type Claims struct {
	SubjectID   string
	Email       string
	DisplayName string
}

// BeginOptions tunes a single authorization redirect.
type BeginOptions struct {
	// State is the opaque anti-forgery value echoed back on the callback.
	State string
	// ForceReauth asks the provider to re-prompt for credentials even when
	// it holds a live session for the user.
	ForceReauth bool
}

// Delegate drives the authorization-code flow against a single provider.
type Delegate struct {
	provider Provider
	client   *http.Client
	keys     *keySet
	tracer   tracer.Tracer
	logger   *slog.Logger

	authorizeURL string
	tokenURL     string
	logoutURL    string
	issuer       string

	exchangeTimeout time.Duration
}

type Option func(*Delegate)

// WithHTTPClient replaces the client used for token and key fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Delegate) {
		d.client = c
	}
}

// WithExchangeTimeout bounds the code-for-token exchange round trip.
func WithExchangeTimeout(t time.Duration) Option {
	return func(d *Delegate) {
		if t > 0 {
			d.exchangeTimeout = t
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Delegate) {
		d.logger = l
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(d *Delegate) {
		if t != nil {
			d.tracer = t
		}
	}
}

// New validates the provider settings and returns a ready delegate. A
// misconfigured provider is reported here, before any request depends on it.
func New(provider Provider, opts ...Option) (*Delegate, error) {
	if err := provider.validate(); err != nil {
		return nil, err
	}

	base := provider.baseURL()
	d := &Delegate{
		provider:        provider,
		client:          &http.Client{Timeout: defaultExchangeTimeout},
		tracer:          tracer.NewNoop(),
		logger:          slog.Default(),
		authorizeURL:    base + "/authorize",
		tokenURL:        base + "/oauth/token",
		logoutURL:       base + "/v2/logout",
		issuer:          base + "/",
		exchangeTimeout: defaultExchangeTimeout,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.keys = newKeySet(base+"/.well-known/jwks.json", d.client, d.tracer)
	return d, nil
}

// BeginAuthorization returns the provider URL the browser should be sent to.
func (d *Delegate) BeginAuthorization(opts BeginOptions) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", d.provider.ClientID)
	q.Set("redirect_uri", d.provider.CallbackURL)
	q.Set("scope", defaultScope)
	if d.provider.Audience != "" {
		q.Set("audience", d.provider.Audience)
	}
	if opts.State != "" {
		q.Set("state", opts.State)
	}
	if opts.ForceReauth {
		q.Set("prompt", "login")
	}
	return d.authorizeURL + "?" + q.Encode()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	TokenType   string `json:"token_type"`
}

// CompleteAuthorization exchanges an authorization code for tokens and
// validates the returned ID token. Any provider rejection, transport failure,
// or invalid token surfaces as a provider error; the code is never retried.
func (d *Delegate) CompleteAuthorization(ctx context.Context, code string) (_ Claims, err error) {
	ctx, span := d.tracer.Start(ctx, tracer.SpanTokenExchange)
	defer func() { span.End(err) }()

	if code == "" {
		return Claims{}, dErrors.New(dErrors.CodeProviderError, "authorization code is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, d.exchangeTimeout)
	defer cancel()

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", d.provider.CallbackURL)
	form.Set("client_id", d.provider.ClientID)
	form.Set("client_secret", d.provider.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Claims{}, dErrors.Wrap(err, dErrors.CodeProviderError, "could not build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return Claims{}, dErrors.Wrap(err, dErrors.CodeProviderError, "token exchange failed")
	}
	defer resp.Body.Close()

	span.SetAttributes(tracer.Int64(tracer.AttrHTTPStatus, int64(resp.StatusCode)))
	if resp.StatusCode != http.StatusOK {
		d.logger.Warn("provider rejected authorization code", "status", resp.StatusCode)
		return Claims{}, dErrors.New(dErrors.CodeProviderError,
			fmt.Sprintf("provider rejected authorization code (status %d)", resp.StatusCode))
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return Claims{}, dErrors.Wrap(err, dErrors.CodeProviderError, "could not decode token response")
	}
	if tokens.IDToken == "" {
		return Claims{}, dErrors.New(dErrors.CodeProviderError, "token response contained no id token")
	}

	return d.validateIDToken(ctx, tokens.IDToken)
}

type idTokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

func (d *Delegate) validateIDToken(ctx context.Context, raw string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(d.issuer),
		jwt.WithAudience(d.provider.ClientID),
		jwt.WithExpirationRequired(),
	)

	var claims idTokenClaims
	token, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return d.keys.Key(ctx, kid)
	})
	if err != nil {
		return Claims{}, dErrors.Wrap(err, dErrors.CodeProviderError, "id token validation failed")
	}
	if !token.Valid {
		return Claims{}, dErrors.New(dErrors.CodeProviderError, "id token is not valid")
	}
	if claims.Subject == "" {
		return Claims{}, dErrors.New(dErrors.CodeProviderError, "id token has no subject")
	}

	display := claims.Name
	if display == "" {
		display = claims.Email
	}
	return Claims{
		SubjectID:   claims.Subject,
		Email:       claims.Email,
		DisplayName: display,
	}, nil
}

// BuildLogoutRedirect returns the provider URL that ends the provider-side
// session and then sends the browser back to returnTo.
func (d *Delegate) BuildLogoutRedirect(returnTo string) string {
	q := url.Values{}
	q.Set("returnTo", returnTo)
	q.Set("client_id", d.provider.ClientID)
	return d.logoutURL + "?" + q.Encode()
}
