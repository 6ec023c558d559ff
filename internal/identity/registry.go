package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	dErrors "authgate/pkg/domain-errors"
	"authgate/pkg/secrets"
)

// Registry is the lookup interface the verifier depends on.
// Error Contract: FindByEmail returns a not_found domain error when the
// identity does not exist.
type Registry interface {
	FindByEmail(ctx context.Context, email string) (*Identity, error)
}

// InMemoryRegistry stores identities in memory for the process lifetime.
type InMemoryRegistry struct {
	mu         sync.RWMutex
	identities map[string]*Identity
}

// NewInMemoryRegistry constructs an empty registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{identities: make(map[string]*Identity)}
}

// Register adds an identity, hashing the given plaintext password. Intended
// for startup seeding and tests.
func (r *InMemoryRegistry) Register(email, password, displayName string) (*Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email is required")
	}
	hash, err := secrets.HashPassword(password)
	if err != nil {
		return nil, err
	}

	ident := &Identity{
		UserID:       uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.identities[email]; exists {
		return nil, dErrors.New(dErrors.CodeConflict, "email already registered")
	}
	r.identities[email] = ident
	return ident, nil
}

func (r *InMemoryRegistry) FindByEmail(_ context.Context, email string) (*Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ident, ok := r.identities[strings.ToLower(strings.TrimSpace(email))]; ok {
		copied := *ident
		return &copied, nil
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
}
