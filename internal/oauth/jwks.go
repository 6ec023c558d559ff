package oauth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"authgate/internal/platform/tracer"
	dErrors "authgate/pkg/domain-errors"
)

// jwksCacheTTL bounds how long fetched signing keys are reused before a
// refetch. Key rotation at the IdP is rare; an hour keeps validation cheap.
const jwksCacheTTL = time.Hour

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

// keySet caches the provider's RSA signing keys. Concurrent cache misses are
// deduplicated through singleflight so a burst of callbacks triggers one
// upstream fetch.
type keySet struct {
	url    string
	client *http.Client
	tracer tracer.Tracer

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time

	group singleflight.Group
}

func newKeySet(url string, client *http.Client, tr tracer.Tracer) *keySet {
	return &keySet{
		url:    url,
		client: client,
		tracer: tr,
		keys:   make(map[string]*rsa.PublicKey),
	}
}

// Key returns the RSA public key for a kid, fetching the JWKS document when
// the cache is cold, stale, or missing the kid (rotation).
func (ks *keySet) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	ks.mu.RLock()
	key, ok := ks.keys[kid]
	fresh := time.Since(ks.fetchedAt) < jwksCacheTTL
	ks.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	if _, err, _ := ks.group.Do("jwks", func() (any, error) {
		return nil, ks.refresh(ctx)
	}); err != nil {
		return nil, err
	}

	ks.mu.RLock()
	defer ks.mu.RUnlock()
	if key, ok := ks.keys[kid]; ok {
		return key, nil
	}
	return nil, dErrors.New(dErrors.CodeProviderError, "no signing key for token")
}

func (ks *keySet) refresh(ctx context.Context) (err error) {
	ctx, span := ks.tracer.Start(ctx, tracer.SpanJWKSFetch)
	defer func() { span.End(err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ks.url, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeProviderError, "could not build jwks request")
	}

	resp, err := ks.client.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeProviderError, "could not fetch jwks")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return dErrors.New(dErrors.CodeProviderError, fmt.Sprintf("jwks endpoint returned %d", resp.StatusCode))
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return dErrors.Wrap(err, dErrors.CodeProviderError, "could not decode jwks")
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := parseRSAKey(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return dErrors.New(dErrors.CodeProviderError, "jwks contained no usable signing keys")
	}

	ks.mu.Lock()
	ks.keys = keys
	ks.fetchedAt = time.Now()
	ks.mu.Unlock()
	return nil
}

func parseRSAKey(k jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e <= 1 {
		return nil, fmt.Errorf("invalid exponent")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}
