package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "authgate/pkg/domain-errors"
)

func seededRegistry(t *testing.T) *InMemoryRegistry {
	t.Helper()
	registry := NewInMemoryRegistry()
	_, err := registry.Register("admin@example.com", "admin123", "Admin")
	require.NoError(t, err)
	return registry
}

func TestVerify(t *testing.T) {
	registry := seededRegistry(t)
	verifier := NewVerifier(registry)
	ctx := context.Background()

	t.Run("correct password returns identity", func(t *testing.T) {
		ident, err := verifier.Verify(ctx, "admin@example.com", "admin123")
		require.NoError(t, err)
		assert.Equal(t, "admin@example.com", ident.Email)
		assert.NotEmpty(t, ident.UserID)
	})

	t.Run("email lookup is case and whitespace insensitive", func(t *testing.T) {
		ident, err := verifier.Verify(ctx, "  Admin@Example.COM ", "admin123")
		require.NoError(t, err)
		assert.Equal(t, "admin@example.com", ident.Email)
	})

	t.Run("wrong password yields invalid_credentials", func(t *testing.T) {
		_, err := verifier.Verify(ctx, "admin@example.com", "wrong")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
	})

	t.Run("unknown email yields the identical error", func(t *testing.T) {
		_, errUnknown := verifier.Verify(ctx, "nobody@example.com", "admin123")
		_, errWrongPw := verifier.Verify(ctx, "admin@example.com", "wrong")

		require.Error(t, errUnknown)
		require.Error(t, errWrongPw)
		// Indistinguishable: same code, same message.
		assert.Equal(t, errWrongPw.Error(), errUnknown.Error())
		assert.True(t, errors.Is(errUnknown, errWrongPw))
	})
}

func TestRegistry(t *testing.T) {
	t.Run("duplicate email rejected", func(t *testing.T) {
		registry := seededRegistry(t)
		_, err := registry.Register("admin@example.com", "other", "Dup")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("find returns a copy", func(t *testing.T) {
		registry := seededRegistry(t)
		ident, err := registry.FindByEmail(context.Background(), "admin@example.com")
		require.NoError(t, err)
		ident.Email = "mutated@example.com"

		again, err := registry.FindByEmail(context.Background(), "admin@example.com")
		require.NoError(t, err)
		assert.Equal(t, "admin@example.com", again.Email)
	})

	t.Run("empty email rejected", func(t *testing.T) {
		registry := NewInMemoryRegistry()
		_, err := registry.Register("", "pw", "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
