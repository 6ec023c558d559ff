package session

import "time"

// AuthMethod records how a session was established.
type AuthMethod string

const (
	MethodLocal AuthMethod = "local"
	MethodOAuth AuthMethod = "oauth"
)

// Session represents one authenticated principal's active login. The token
// is the lookup key; it carries 256 bits of entropy and is never logged in
// full.
type Session struct {
	Token       string
	SubjectID   string
	Email       string
	DisplayName string
	AuthMethod  AuthMethod
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the session has passed its absolute TTL.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(now)
}

// New captures the identity attributes for a session about to be created.
type New struct {
	SubjectID   string
	Email       string
	DisplayName string
	AuthMethod  AuthMethod
}
