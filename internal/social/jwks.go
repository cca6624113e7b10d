package social

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"math/big"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
)

const jwksTTL = time.Hour

// jwks caches the RSA signing keys published at a JWKS endpoint.
type jwks struct {
	url        string
	httpClient *http.Client

	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	fetched time.Time
}

func newJWKS(url string, client *http.Client) *jwks {
	return &jwks{url: url, httpClient: client}
}

// key returns the key for kid, refetching once when the cache is stale or
// does not know the kid.
func (j *jwks) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if k, ok := j.keys[kid]; ok && time.Since(j.fetched) < jwksTTL {
		return k, nil
	}
	if err := j.refresh(ctx); err != nil {
		return nil, err
	}
	k, ok := j.keys[kid]
	if !ok {
		return nil, rejected("unknown signing key %q", kid)
	}
	return k, nil
}

func (j *jwks) refresh(ctx context.Context) error {
	status, body, err := get(ctx, j.httpClient, j.url)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return rejected("jwks returned %d", status)
	}

	keys := make(map[string]*rsa.PublicKey)
	gjson.GetBytes(body, "keys").ForEach(func(_, k gjson.Result) bool {
		if k.Get("kty").String() != "RSA" {
			return true
		}
		n, err := base64.RawURLEncoding.DecodeString(k.Get("n").String())
		if err != nil {
			return true
		}
		e, err := base64.RawURLEncoding.DecodeString(k.Get("e").String())
		if err != nil {
			return true
		}
		keys[k.Get("kid").String()] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(n),
			E: int(new(big.Int).SetBytes(e).Int64()),
		}
		return true
	})
	if len(keys) == 0 {
		return rejected("jwks has no RSA keys")
	}
	j.keys = keys
	j.fetched = time.Now()
	return nil
}

// verify checks an RS256 id token against the key set, the accepted
// issuers and the audience, and returns its claims.
func (j *jwks) verify(ctx context.Context, token string, issuers []string, audience string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, rejected("token has no kid")
		}
		return j.key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, rejected("id token: %v", err)
	}

	iss, _ := claims.GetIssuer()
	if !slices.Contains(issuers, iss) {
		return nil, rejected("issuer %q not accepted", iss)
	}
	return claims, nil
}

// claimString reads a string claim, tolerating absent keys.
func claimString(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// claimBool accepts both JSON booleans and "true" strings.
func claimBool(claims jwt.MapClaims, key string) bool {
	switch v := claims[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}
