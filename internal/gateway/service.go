// Package gateway orchestrates authentication flows: local credential login,
// delegated OAuth login, logout, and session-backed access control. Every
// security-relevant outcome is recorded to the audit trail.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"authgate/internal/audit"
	"authgate/internal/oauth"
	"authgate/internal/platform/metrics"
	"authgate/internal/platform/middleware"
	"authgate/internal/platform/privacy"
	"authgate/internal/platform/tracer"
	"authgate/internal/session"
	dErrors "authgate/pkg/domain-errors"
)

type Service struct {
	sessions SessionStore
	verifier Verifier
	recorder *audit.Recorder
	delegate Delegate
	lockout  Lockout
	metrics  *metrics.Metrics
	tracer   tracer.Tracer
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithDelegate enables delegated login. Without it the OAuth operations
// report a misconfigured provider.
func WithDelegate(d Delegate) Option {
	return func(s *Service) {
		s.delegate = d
	}
}

func WithLockout(l Lockout) Option {
	return func(s *Service) {
		s.lockout = l
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func New(sessions SessionStore, verifier Verifier, recorder *audit.Recorder, opts ...Option) (*Service, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder is required")
	}

	svc := &Service{
		sessions: sessions,
		verifier: verifier,
		recorder: recorder,
		tracer:   tracer.NewNoop(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// event builds an audit event with request provenance pulled from the
// context the middleware populated.
func (s *Service) event(ctx context.Context, eventType audit.EventType, route string) audit.Event {
	ua := middleware.UserAgent(ctx)
	return audit.Event{
		Type:      eventType,
		Route:     route,
		SourceIP:  middleware.ClientIP(ctx),
		UserAgent: ua,
		Device:    audit.DescribeDevice(ua),
		RequestID: middleware.GetRequestID(ctx),
	}
}

// LoginLocal verifies local credentials and establishes a session. Failures
// are indistinguishable to the caller whether the email is unknown or the
// password wrong; both count toward the lockout.
func (s *Service) LoginLocal(ctx context.Context, email, password string) (_ *session.Session, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanLoginLocal,
		tracer.String(tracer.AttrEmailHash, tracer.HashEmail(email)),
		tracer.String(tracer.AttrAuthMethod, string(session.MethodLocal)),
	)
	defer func() { span.End(err) }()

	ip := middleware.ClientIP(ctx)

	if s.lockout != nil {
		if err := s.lockout.Check(email, ip); err != nil {
			s.recordLoginFailure(ctx, email, string(session.MethodLocal))
			return nil, err
		}
	}

	ident, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		if s.lockout != nil && dErrors.HasCode(err, dErrors.CodeInvalidCredentials) {
			if s.lockout.RecordFailure(email, ip) {
				s.logger.WarnContext(ctx, "credential pair locked out",
					"ip", privacy.AnonymizeIP(ip), "log_type", "audit")
			}
		}
		s.recordLoginFailure(ctx, email, string(session.MethodLocal))
		return nil, err
	}

	sess, err := s.sessions.Create(ctx, session.New{
		SubjectID:   ident.UserID,
		Email:       ident.Email,
		DisplayName: ident.DisplayName,
		AuthMethod:  session.MethodLocal,
	})
	if err != nil {
		return nil, err
	}

	if s.lockout != nil {
		s.lockout.RecordSuccess(email, ip)
	}

	e := s.event(ctx, audit.EventLoginSuccess, "/login")
	e.SubjectID = sess.SubjectID
	e.Email = sess.Email
	s.recorder.Record(ctx, e)

	if s.metrics != nil {
		s.metrics.IncrementLogins(string(session.MethodLocal))
		s.metrics.IncrementActiveSessions(1)
	}

	return sess, nil
}

// BeginOAuthLogin returns the provider redirect URL that starts a delegated
// login. The state value binds the eventual callback to this browser.
func (s *Service) BeginOAuthLogin(ctx context.Context, state string, forceReauth bool) (string, error) {
	if s.delegate == nil {
		return "", dErrors.New(dErrors.CodeMisconfiguredProvider, "oauth provider is not configured")
	}
	return s.delegate.BeginAuthorization(oauth.BeginOptions{
		State:       state,
		ForceReauth: forceReauth,
	}), nil
}

// CompleteOAuthLogin exchanges the callback's authorization code for identity
// claims and establishes a session.
func (s *Service) CompleteOAuthLogin(ctx context.Context, code string) (_ *session.Session, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanOAuthComplete,
		tracer.String(tracer.AttrAuthMethod, string(session.MethodOAuth)),
	)
	defer func() { span.End(err) }()

	if s.delegate == nil {
		return nil, dErrors.New(dErrors.CodeMisconfiguredProvider, "oauth provider is not configured")
	}

	start := time.Now()
	claims, err := s.delegate.CompleteAuthorization(ctx, code)
	span.SetAttributes(tracer.Duration("exchange_ms", time.Since(start)))
	if s.metrics != nil {
		s.metrics.ObserveExchangeLatency(time.Since(start).Seconds())
	}
	if err != nil {
		s.recordLoginFailure(ctx, "", string(session.MethodOAuth))
		return nil, err
	}

	sess, err := s.sessions.Create(ctx, session.New{
		SubjectID:   claims.SubjectID,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		AuthMethod:  session.MethodOAuth,
	})
	if err != nil {
		return nil, err
	}

	e := s.event(ctx, audit.EventLoginSuccess, "/callback")
	e.SubjectID = sess.SubjectID
	e.Email = sess.Email
	s.recorder.Record(ctx, e)

	if s.metrics != nil {
		s.metrics.IncrementLogins(string(session.MethodOAuth))
		s.metrics.IncrementActiveSessions(1)
	}

	return sess, nil
}

func (s *Service) recordLoginFailure(ctx context.Context, email, method string) {
	e := s.event(ctx, audit.EventLoginFailure, "/login")
	e.Email = email
	if method == string(session.MethodOAuth) {
		e.Route = "/callback"
	}
	s.recorder.Record(ctx, e)

	if s.metrics != nil {
		s.metrics.IncrementLoginFailures(method)
	}
}

// LogoutResult reports what a logout did. Session is nil when no live
// session matched the token; RedirectURL is set when the provider-side
// session should also be ended.
type LogoutResult struct {
	Session     *session.Session
	RedirectURL string
}

// Logout destroys the session for a token. It is idempotent: an unknown or
// already-destroyed token still succeeds and still leaves an audit record,
// only without subject identity.
func (s *Service) Logout(ctx context.Context, token, returnTo string) *LogoutResult {
	ctx, span := s.tracer.Start(ctx, tracer.SpanLogout)
	defer span.End(nil)

	removed := s.sessions.Destroy(ctx, token)

	e := s.event(ctx, audit.EventLogout, "/logout")
	result := &LogoutResult{Session: removed}
	if removed != nil {
		e.SubjectID = removed.SubjectID
		e.Email = removed.Email

		if removed.AuthMethod == session.MethodOAuth && s.delegate != nil {
			result.RedirectURL = s.delegate.BuildLogoutRedirect(returnTo)
		}
		if s.metrics != nil {
			s.metrics.DecrementActiveSessions(1)
		}
	}
	s.recorder.Record(ctx, e)

	if s.metrics != nil {
		s.metrics.IncrementLogouts()
	}

	return result
}
