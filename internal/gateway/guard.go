package gateway

import (
	"context"

	"authgate/internal/audit"
	"authgate/internal/session"
	dErrors "authgate/pkg/domain-errors"
)

// RequireSession resolves a session token for a protected route. A live
// session yields a protected-access audit event; a missing, unknown, or
// expired token yields an unauthorized-access event and a missing-session
// error the transport layer turns into a 401 or a login redirect.
func (s *Service) RequireSession(ctx context.Context, token, route string) (*session.Session, error) {
	if token == "" {
		s.recordUnauthorized(ctx, route)
		return nil, dErrors.New(dErrors.CodeMissingSession, "no active session")
	}

	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		s.recordUnauthorized(ctx, route)
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeMissingSession, "no active session")
		}
		return nil, err
	}

	e := s.event(ctx, audit.EventProtectedAccess, route)
	e.SubjectID = sess.SubjectID
	e.Email = sess.Email
	s.recorder.Record(ctx, e)

	if s.metrics != nil {
		s.metrics.IncrementProtectedAccess()
	}

	return sess, nil
}

// CurrentSession resolves a token without treating absence as a security
// event, for pages that merely render differently when signed in.
func (s *Service) CurrentSession(ctx context.Context, token string) *session.Session {
	if token == "" {
		return nil
	}
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil
	}
	return sess
}

func (s *Service) recordUnauthorized(ctx context.Context, route string) {
	s.recorder.Record(ctx, s.event(ctx, audit.EventUnauthorizedAccess, route))

	if s.metrics != nil {
		s.metrics.IncrementUnauthorizedAccess()
	}
}
