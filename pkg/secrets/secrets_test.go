package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "authgate/pkg/domain-errors"
)

func TestGenerateToken(t *testing.T) {
	t.Run("tokens are unique and long enough", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			tok, err := GenerateToken()
			require.NoError(t, err)
			// 32 bytes base64url without padding is 43 characters
			assert.Len(t, tok, 43)
			assert.False(t, seen[tok], "token collision")
			seen[tok] = true
		}
	})
}

func TestHashPassword(t *testing.T) {
	t.Run("round trip verifies", func(t *testing.T) {
		hash, err := HashPassword("admin123")
		require.NoError(t, err)
		assert.NoError(t, VerifyPassword("admin123", hash))
	})

	t.Run("wrong password fails with invalid_credentials", func(t *testing.T) {
		hash, err := HashPassword("admin123")
		require.NoError(t, err)
		err = VerifyPassword("wrong", hash)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
	})

	t.Run("same password gets distinct salts", func(t *testing.T) {
		h1, err := HashPassword("secret")
		require.NoError(t, err)
		h2, err := HashPassword("secret")
		require.NoError(t, err)
		assert.NotEqual(t, h1, h2)
	})

	t.Run("empty password rejected", func(t *testing.T) {
		_, err := HashPassword("")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestVerifyPassword(t *testing.T) {
	t.Run("malformed hash is an internal error not a mismatch", func(t *testing.T) {
		err := VerifyPassword("anything", "$argon2id$bogus")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func TestDummyHash(t *testing.T) {
	t.Run("is a valid hash that never matches a real password", func(t *testing.T) {
		dummy := DummyHash()
		err := VerifyPassword("admin123", dummy)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
	})
}
