package social

import (
	"context"
	"net/http"
	"net/url"
	"slices"

	"storyshelf/internal/domain"

	"github.com/tidwall/gjson"
)

const GoogleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// Google validates id tokens with the tokeninfo endpoint. Tokens minted for
// any of the configured client ids (web, Android, iOS) are accepted.
type Google struct {
	tokenInfoURL string
	clientIDs    []string
	httpClient   *http.Client
}

func NewGoogle(clientIDs []string) *Google {
	return &Google{
		tokenInfoURL: GoogleTokenInfoURL,
		clientIDs:    clientIDs,
		httpClient:   defaultHTTPClient(),
	}
}

func (g *Google) WithTokenInfoURL(u string) *Google {
	g.tokenInfoURL = u
	return g
}

func (g *Google) Provider() domain.Provider { return domain.ProviderGoogle }

func (g *Google) Verify(ctx context.Context, idToken string) (*domain.SocialIdentity, error) {
	if idToken == "" {
		return nil, rejected("empty id token")
	}

	status, body, err := get(ctx, g.httpClient, g.tokenInfoURL+"?id_token="+url.QueryEscape(idToken))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, rejected("tokeninfo returned %d", status)
	}

	res := gjson.ParseBytes(body)
	if aud := res.Get("aud").String(); !slices.Contains(g.clientIDs, aud) {
		return nil, rejected("client id %q not accepted", aud)
	}
	if iss := res.Get("iss").String(); !slices.Contains(googleIssuers, iss) {
		return nil, rejected("issuer %q not accepted", iss)
	}
	sub := res.Get("sub").String()
	if sub == "" {
		return nil, rejected("missing sub")
	}

	return &domain.SocialIdentity{
		Provider:      domain.ProviderGoogle,
		ProviderID:    sub,
		Email:         res.Get("email").String(),
		Name:          res.Get("name").String(),
		EmailVerified: res.Get("email_verified").Bool(),
	}, nil
}
