package iap

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"storyshelf/internal/domain"

	"github.com/tidwall/gjson"
)

const GoogleAPIBase = "https://androidpublisher.googleapis.com"

// GoogleVerifier checks one-time product purchases with the Android Publisher API.
type GoogleVerifier struct {
	baseURL     string
	packageName string
	accessToken string
	httpClient  *http.Client
}

// NewGoogleVerifier uses accessToken as the bearer credential.
func NewGoogleVerifier(packageName, accessToken string) *GoogleVerifier {
	return &GoogleVerifier{
		baseURL:     GoogleAPIBase,
		packageName: packageName,
		accessToken: accessToken,
		httpClient:  defaultHTTPClient(),
	}
}

// WithBaseURL points the verifier at another host.
func (v *GoogleVerifier) WithBaseURL(base string) *GoogleVerifier {
	v.baseURL = strings.TrimRight(base, "/")
	return v
}

func (v *GoogleVerifier) Platform() domain.Platform {
	return domain.PlatformGoogle
}

// Verify accepts a purchase token whose purchaseState is 0 (purchased).
// The transaction id is the Play orderId.
func (v *GoogleVerifier) Verify(ctx context.Context, productID, purchaseToken string) (*domain.VerifiedPurchase, error) {
	if purchaseToken == "" || productID == "" {
		return nil, rejected("empty purchase token")
	}

	endpoint := fmt.Sprintf("%s/androidpublisher/v3/applications/%s/purchases/products/%s/tokens/%s",
		v.baseURL, url.PathEscape(v.packageName), url.PathEscape(productID), url.PathEscape(purchaseToken))
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if v.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+v.accessToken)
	}

	status, body, err := do(ctx, v.httpClient, req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, rejected("google play returned %d: %s", status, gjson.GetBytes(body, "error.message").String())
	}

	res := gjson.ParseBytes(body)
	if state := res.Get("purchaseState"); !state.Exists() || state.Int() != 0 {
		return nil, rejected("purchase state %s", state.Raw)
	}
	orderID := res.Get("orderId").String()
	if orderID == "" {
		return nil, rejected("missing orderId")
	}

	return &domain.VerifiedPurchase{
		Platform:      domain.PlatformGoogle,
		ProductID:     productID,
		TransactionID: orderID,
		Raw:           body,
	}, nil
}
