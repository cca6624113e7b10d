package social

import (
	"context"

	"storyshelf/internal/domain"
)

const (
	AppleJWKSURL = "https://appleid.apple.com/auth/keys"
	appleIssuer  = "https://appleid.apple.com"
)

// Apple verifies Sign in with Apple id tokens.
type Apple struct {
	clientID string
	keys     *jwks
}

func NewApple(clientID string) *Apple {
	return &Apple{clientID: clientID, keys: newJWKS(AppleJWKSURL, defaultHTTPClient())}
}

func (a *Apple) WithJWKSURL(u string) *Apple {
	a.keys = newJWKS(u, a.keys.httpClient)
	return a
}

func (a *Apple) Provider() domain.Provider { return domain.ProviderApple }

// Verify falls back to <sub>@apple.com when the token carries no email,
// which Apple omits after the first sign in.
func (a *Apple) Verify(ctx context.Context, idToken string) (*domain.SocialIdentity, error) {
	if idToken == "" {
		return nil, rejected("empty id token")
	}
	claims, err := a.keys.verify(ctx, idToken, []string{appleIssuer}, a.clientID)
	if err != nil {
		return nil, err
	}
	sub := claimString(claims, "sub")
	if sub == "" {
		return nil, rejected("missing sub")
	}

	email := claimString(claims, "email")
	verified := claimBool(claims, "email_verified")
	if email == "" {
		email = sub + "@apple.com"
		verified = true
	}
	return &domain.SocialIdentity{
		Provider:      domain.ProviderApple,
		ProviderID:    sub,
		Email:         email,
		EmailVerified: verified,
	}, nil
}
