package audit

import (
	"context"

	dErrors "authgate/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific 404s consistent across implementations.
	ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")
)

// Store is the append-only sink behind the recorder. Implementations must be
// safe for concurrent Append calls and must never mutate stored events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subjectID string) ([]Event, error)
	ListAll(ctx context.Context) ([]Event, error)
}
