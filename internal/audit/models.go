package audit

import "time"

// EventType enumerates the security-relevant occurrences the gateway records.
type EventType string

const (
	EventLoginSuccess       EventType = "login_success"
	EventLoginFailure       EventType = "login_failure"
	EventLogout             EventType = "logout"
	EventProtectedAccess    EventType = "protected_access"
	EventUnauthorizedAccess EventType = "unauthorized_access"
)

// Event is emitted from domain logic to capture key security actions. Keep it
// transport-agnostic so stores and sinks can fan out. Events are immutable
// once recorded; the store is append-only.
type Event struct {
	Timestamp time.Time
	Type      EventType

	// Subject identity, present when known. Unauthorized attempts carry
	// provenance only.
	SubjectID string
	Email     string

	// Request provenance.
	Route     string
	SourceIP  string
	UserAgent string
	Device    string
	RequestID string
}
