package social

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"storyshelf/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
)

const (
	FacebookJWKSURL  = "https://www.facebook.com/.well-known/oauth/openid/jwks/"
	FacebookGraphURL = "https://graph.facebook.com"
)

var facebookIssuers = []string{"https://www.facebook.com", "https://fid.facebook.com"}

// Facebook accepts either a Limited Login id token (a JWT signed with the
// Facebook JWKS) or a classic access token checked against the Graph API.
type Facebook struct {
	appID      string
	graphURL   string
	keys       *jwks
	httpClient *http.Client
}

func NewFacebook(appID string) *Facebook {
	client := defaultHTTPClient()
	return &Facebook{
		appID:      appID,
		graphURL:   FacebookGraphURL,
		keys:       newJWKS(FacebookJWKSURL, client),
		httpClient: client,
	}
}

func (f *Facebook) WithURLs(jwksURL, graphURL string) *Facebook {
	f.keys = newJWKS(jwksURL, f.httpClient)
	f.graphURL = strings.TrimRight(graphURL, "/")
	return f
}

func (f *Facebook) Provider() domain.Provider { return domain.ProviderFacebook }

func (f *Facebook) Verify(ctx context.Context, token string) (*domain.SocialIdentity, error) {
	if token == "" {
		return nil, rejected("empty token")
	}
	if isSignedJWT(token) {
		return f.verifyIDToken(ctx, token)
	}
	return f.verifyAccessToken(ctx, token)
}

func (f *Facebook) verifyIDToken(ctx context.Context, token string) (*domain.SocialIdentity, error) {
	claims, err := f.keys.verify(ctx, token, facebookIssuers, f.appID)
	if err != nil {
		return nil, err
	}
	id := claimString(claims, "user_id")
	if id == "" {
		id = claimString(claims, "sub")
	}
	return &domain.SocialIdentity{
		Provider:      domain.ProviderFacebook,
		ProviderID:    id,
		Email:         claimString(claims, "email"),
		Name:          claimString(claims, "name"),
		EmailVerified: true,
	}, nil
}

func (f *Facebook) verifyAccessToken(ctx context.Context, token string) (*domain.SocialIdentity, error) {
	q := url.Values{"fields": {"id,email,name"}, "access_token": {token}}
	status, body, err := get(ctx, f.httpClient, f.graphURL+"/me?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, rejected("graph api returned %d: %s", status, gjson.GetBytes(body, "error.message").String())
	}

	res := gjson.ParseBytes(body)
	id := res.Get("id").String()
	if id == "" {
		return nil, rejected("missing id")
	}
	return &domain.SocialIdentity{
		Provider:      domain.ProviderFacebook,
		ProviderID:    id,
		Email:         res.Get("email").String(),
		Name:          res.Get("name").String(),
		EmailVerified: true,
	}, nil
}

// isSignedJWT reports whether token parses as a JWT carrying alg and kid headers.
func isSignedJWT(token string) bool {
	t, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return false
	}
	alg, _ := t.Header["alg"].(string)
	kid, _ := t.Header["kid"].(string)
	return alg != "" && kid != ""
}
