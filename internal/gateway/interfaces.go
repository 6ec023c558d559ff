package gateway

import (
	"context"

	"authgate/internal/identity"
	"authgate/internal/oauth"
	"authgate/internal/session"
)

// SessionStore is the session lifecycle the gateway depends on.
type SessionStore interface {
	Create(ctx context.Context, ident session.New) (*session.Session, error)
	Get(ctx context.Context, token string) (*session.Session, error)
	Destroy(ctx context.Context, token string) *session.Session
}

// Verifier checks local credentials against the identity registry.
type Verifier interface {
	Verify(ctx context.Context, email, password string) (*identity.Identity, error)
}

// Delegate drives the authorization-code flow against the external provider.
type Delegate interface {
	BeginAuthorization(opts oauth.BeginOptions) string
	CompleteAuthorization(ctx context.Context, code string) (oauth.Claims, error)
	BuildLogoutRedirect(returnTo string) string
}

// Lockout throttles repeated credential failures per email/IP pair.
type Lockout interface {
	Check(email, ip string) error
	RecordFailure(email, ip string) bool
	RecordSuccess(email, ip string)
}
