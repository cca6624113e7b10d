package iap

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"storyshelf/internal/domain"

	"github.com/tidwall/gjson"
)

const (
	AppleProductionURL = "https://buy.itunes.apple.com/verifyReceipt"
	AppleSandboxURL    = "https://sandbox.itunes.apple.com/verifyReceipt"

	// statusSandboxReceipt means a sandbox receipt was sent to production.
	statusSandboxReceipt = 21007
)

// AppleVerifier validates receipts with the App Store verifyReceipt endpoint.
type AppleVerifier struct {
	productionURL string
	sandboxURL    string
	sharedSecret  string
	httpClient    *http.Client
}

func NewAppleVerifier(sharedSecret string) *AppleVerifier {
	return &AppleVerifier{
		productionURL: AppleProductionURL,
		sandboxURL:    AppleSandboxURL,
		sharedSecret:  sharedSecret,
		httpClient:    defaultHTTPClient(),
	}
}

// WithURLs overrides both endpoints.
func (v *AppleVerifier) WithURLs(production, sandbox string) *AppleVerifier {
	v.productionURL = production
	v.sandboxURL = sandbox
	return v
}

func (v *AppleVerifier) Platform() domain.Platform {
	return domain.PlatformApple
}

// Verify accepts a receipt with status 0 that contains an in_app item for
// productID. Sandbox receipts are routed to the sandbox endpoint once.
func (v *AppleVerifier) Verify(ctx context.Context, productID, receipt string) (*domain.VerifiedPurchase, error) {
	if receipt == "" || productID == "" {
		return nil, rejected("empty receipt")
	}

	body, err := v.post(ctx, v.productionURL, receipt)
	if err != nil {
		return nil, err
	}
	if gjson.GetBytes(body, "status").Int() == statusSandboxReceipt {
		if body, err = v.post(ctx, v.sandboxURL, receipt); err != nil {
			return nil, err
		}
	}

	res := gjson.ParseBytes(body)
	if status := res.Get("status"); !status.Exists() || status.Int() != 0 {
		return nil, rejected("app store status %s", status.Raw)
	}

	var txID string
	res.Get("receipt.in_app").ForEach(func(_, item gjson.Result) bool {
		if item.Get("product_id").String() == productID {
			txID = item.Get("transaction_id").String()
		}
		return true
	})
	if txID == "" {
		return nil, rejected("no in_app purchase for %s", productID)
	}

	return &domain.VerifiedPurchase{
		Platform:      domain.PlatformApple,
		ProductID:     productID,
		TransactionID: txID,
		Raw:           body,
	}, nil
}

func (v *AppleVerifier) post(ctx context.Context, endpoint, receipt string) ([]byte, error) {
	payload, err := json.Marshal(map[string]any{
		"receipt-data":             receipt,
		"password":                 v.sharedSecret,
		"exclude-old-transactions": true,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	status, body, err := do(ctx, v.httpClient, req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, rejected("app store returned %d", status)
	}
	return body, nil
}
