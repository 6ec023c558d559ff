package oauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "authgate/pkg/domain-errors"
)

// fakeIdP simulates the provider's token and JWKS endpoints. Codes are
// registered per test; unknown codes are rejected the way the real provider
// rejects replayed or forged ones.
type fakeIdP struct {
	server *httptest.Server
	key    *rsa.PrivateKey
	kid    string

	codes      map[string]idTokenClaims
	jwksCalls  atomic.Int64
	tokenCalls atomic.Int64
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	idp := &fakeIdP{
		key:   key,
		kid:   "test-key-1",
		codes: map[string]idTokenClaims{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/jwks.json", idp.handleJWKS)
	mux.HandleFunc("/oauth/token", idp.handleToken)
	idp.server = httptest.NewServer(mux)
	t.Cleanup(idp.server.Close)

	return idp
}

func (f *fakeIdP) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	f.jwksCalls.Add(1)
	doc := jwksDocument{Keys: []jwk{{
		Kty: "RSA",
		Kid: f.kid,
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(f.key.PublicKey.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(f.key.PublicKey.E)).Bytes()),
	}}}
	json.NewEncoder(w).Encode(doc)
}

func (f *fakeIdP) handleToken(w http.ResponseWriter, r *http.Request) {
	f.tokenCalls.Add(1)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	claims, ok := f.codes[r.PostFormValue("code")]
	if !ok {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = f.kid
	signed, err := token.SignedString(f.key)
	if err != nil {
		http.Error(w, "signing failed", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(tokenResponse{
		AccessToken: "access-token",
		IDToken:     signed,
		TokenType:   "Bearer",
	})
}

// issue registers an authorization code that exchanges for a valid ID token.
func (f *fakeIdP) issue(code string, clientID string, sub, email, name string) {
	f.codes[code] = idTokenClaims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    f.server.URL + "/",
			Subject:   sub,
			Audience:  jwt.ClaimStrings{clientID},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func (f *fakeIdP) provider() Provider {
	return Provider{
		Domain:       f.server.URL,
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		CallbackURL:  "http://localhost:3000/callback",
	}
}

func TestNew_MisconfiguredProvider(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
	}{
		{name: "empty provider", provider: Provider{}},
		{name: "missing secret", provider: Provider{
			Domain: "tenant.example.com", ClientID: "id", CallbackURL: "http://localhost/callback",
		}},
		{name: "missing callback", provider: Provider{
			Domain: "tenant.example.com", ClientID: "id", ClientSecret: "secret",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.provider)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeMisconfiguredProvider))
		})
	}
}

func TestBeginAuthorization(t *testing.T) {
	d, err := New(Provider{
		Domain:       "tenant.example.com",
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		CallbackURL:  "http://localhost:3000/callback",
		Audience:     "https://api.example.com",
	})
	require.NoError(t, err)

	t.Run("standard redirect", func(t *testing.T) {
		raw := d.BeginAuthorization(BeginOptions{State: "abc123"})

		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "https", u.Scheme)
		assert.Equal(t, "tenant.example.com", u.Host)
		assert.Equal(t, "/authorize", u.Path)

		q := u.Query()
		assert.Equal(t, "code", q.Get("response_type"))
		assert.Equal(t, "test-client", q.Get("client_id"))
		assert.Equal(t, "http://localhost:3000/callback", q.Get("redirect_uri"))
		assert.Equal(t, "openid profile email", q.Get("scope"))
		assert.Equal(t, "https://api.example.com", q.Get("audience"))
		assert.Equal(t, "abc123", q.Get("state"))
		assert.Empty(t, q.Get("prompt"))
	})

	t.Run("forced re-authentication adds prompt", func(t *testing.T) {
		raw := d.BeginAuthorization(BeginOptions{State: "abc123", ForceReauth: true})

		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "login", u.Query().Get("prompt"))
	})
}

func TestCompleteAuthorization(t *testing.T) {
	ctx := context.Background()

	t.Run("valid code returns claims", func(t *testing.T) {
		idp := newFakeIdP(t)
		idp.issue("good-code", "test-client", "auth0|user1", "user@example.com", "Test User")

		d, err := New(idp.provider())
		require.NoError(t, err)

		claims, err := d.CompleteAuthorization(ctx, "good-code")
		require.NoError(t, err)
		assert.Equal(t, "auth0|user1", claims.SubjectID)
		assert.Equal(t, "user@example.com", claims.Email)
		assert.Equal(t, "Test User", claims.DisplayName)
	})

	t.Run("missing name falls back to email", func(t *testing.T) {
		idp := newFakeIdP(t)
		idp.issue("good-code", "test-client", "auth0|user2", "plain@example.com", "")

		d, err := New(idp.provider())
		require.NoError(t, err)

		claims, err := d.CompleteAuthorization(ctx, "good-code")
		require.NoError(t, err)
		assert.Equal(t, "plain@example.com", claims.DisplayName)
	})

	t.Run("rejected code", func(t *testing.T) {
		idp := newFakeIdP(t)

		d, err := New(idp.provider())
		require.NoError(t, err)

		_, err = d.CompleteAuthorization(ctx, "forged-code")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeProviderError))
	})

	t.Run("empty code", func(t *testing.T) {
		idp := newFakeIdP(t)

		d, err := New(idp.provider())
		require.NoError(t, err)

		_, err = d.CompleteAuthorization(ctx, "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeProviderError))
		assert.Zero(t, idp.tokenCalls.Load())
	})

	t.Run("token signed for another client is rejected", func(t *testing.T) {
		idp := newFakeIdP(t)
		idp.issue("good-code", "other-client", "auth0|user3", "user@example.com", "User")

		d, err := New(idp.provider())
		require.NoError(t, err)

		_, err = d.CompleteAuthorization(ctx, "good-code")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeProviderError))
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		idp := newFakeIdP(t)
		idp.codes["stale-code"] = idTokenClaims{
			Email: "user@example.com",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    idp.server.URL + "/",
				Subject:   "auth0|user4",
				Audience:  jwt.ClaimStrings{"test-client"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
				IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}

		d, err := New(idp.provider())
		require.NoError(t, err)

		_, err = d.CompleteAuthorization(ctx, "stale-code")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeProviderError))
	})

	t.Run("token signed with unknown key is rejected", func(t *testing.T) {
		idp := newFakeIdP(t)

		rogue, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)

		claims := idTokenClaims{
			Email: "user@example.com",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    idp.server.URL + "/",
				Subject:   "auth0|user5",
				Audience:  jwt.ClaimStrings{"test-client"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		token.Header["kid"] = "unknown-key"
		forged, err := token.SignedString(rogue)
		require.NoError(t, err)

		d, err := New(idp.provider())
		require.NoError(t, err)

		_, err = d.validateIDToken(ctx, forged)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeProviderError))
	})

	t.Run("signing keys are cached across exchanges", func(t *testing.T) {
		idp := newFakeIdP(t)
		idp.issue("code-1", "test-client", "auth0|user6", "a@example.com", "A")
		idp.issue("code-2", "test-client", "auth0|user7", "b@example.com", "B")

		d, err := New(idp.provider())
		require.NoError(t, err)

		_, err = d.CompleteAuthorization(ctx, "code-1")
		require.NoError(t, err)
		_, err = d.CompleteAuthorization(ctx, "code-2")
		require.NoError(t, err)

		assert.Equal(t, int64(1), idp.jwksCalls.Load())
	})
}

func TestCompleteAuthorization_ProviderUnreachable(t *testing.T) {
	idp := newFakeIdP(t)
	provider := idp.provider()
	idp.server.Close()

	d, err := New(provider, WithExchangeTimeout(time.Second))
	require.NoError(t, err)

	_, err = d.CompleteAuthorization(context.Background(), "any-code")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeProviderError))
}

func TestBuildLogoutRedirect(t *testing.T) {
	d, err := New(Provider{
		Domain:       "tenant.example.com",
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		CallbackURL:  "http://localhost:3000/callback",
	})
	require.NoError(t, err)

	raw := d.BuildLogoutRedirect("http://localhost:3000/")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/v2/logout", u.Path)
	assert.Equal(t, "tenant.example.com", u.Host)
	assert.Equal(t, "http://localhost:3000/", u.Query().Get("returnTo"))
	assert.Equal(t, "test-client", u.Query().Get("client_id"))
}
