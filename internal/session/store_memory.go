package session

import (
	"context"
	"sync"
	"time"

	dErrors "authgate/pkg/domain-errors"
	"authgate/pkg/secrets"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return a not_found domain error when the requested session does not exist
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures
//
// InMemoryStore stores sessions in memory for the process lifetime. All
// operations are linearizable per token: the mutex commits each mutation
// before any subsequent read observes it, and a Get racing a Destroy of the
// same token resolves to exactly one order.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// Option configures the store.
type Option func(*InMemoryStore)

// WithTTL sets the absolute session lifetime. Zero or negative keeps the
// default of 24 hours.
func WithTTL(ttl time.Duration) Option {
	return func(s *InMemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock injects the time source for expiry checks (no hidden time.Now()
// calls in tests).
func WithClock(now func() time.Time) Option {
	return func(s *InMemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

const defaultTTL = 24 * time.Hour

// NewInMemoryStore constructs an empty session store.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{
		sessions: make(map[string]*Session),
		ttl:      defaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create allocates a fresh token and stores a session for the identity.
// Token allocation and map insertion happen under one critical section, so
// two concurrent creations can never share a token; the token space itself
// (256 random bits) makes collisions negligible, and tokens are never reused
// after destruction within the process lifetime.
func (s *InMemoryStore) Create(_ context.Context, ident New) (*Session, error) {
	token, err := secrets.GenerateToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sess := &Session{
		Token:       token,
		SubjectID:   ident.SubjectID,
		Email:       ident.Email,
		DisplayName: ident.DisplayName,
		AuthMethod:  ident.AuthMethod,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[token]; exists {
		// 256-bit collision; practically unreachable.
		return nil, dErrors.New(dErrors.CodeConflict, "token collision")
	}
	s.sessions[token] = sess
	return copySession(sess), nil
}

// Get returns the session for a token, or a not_found error when the token
// was never issued, already destroyed, or expired.
func (s *InMemoryStore) Get(_ context.Context, token string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok || sess.Expired(s.now()) {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	return copySession(sess), nil
}

// Destroy removes the session for a token and returns it, or nil when the
// token had no live session. Destroying an absent token is not an error.
func (s *InMemoryStore) Destroy(_ context.Context, token string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil
	}
	delete(s.sessions, token)
	if sess.Expired(s.now()) {
		// Gone either way; callers treat expired as absent.
		return nil
	}
	return copySession(sess)
}

// Len reports the number of stored sessions, expired included.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// DeleteExpired removes all sessions that have expired as of the given time.
// The time parameter is injected for testability.
func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for token, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, token)
			deleted++
		}
	}
	return deleted, nil
}

func copySession(sess *Session) *Session {
	copied := *sess
	return &copied
}
