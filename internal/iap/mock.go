package iap

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"storyshelf/internal/domain"
)

// MockVerifier accepts any non-empty receipt. Never wire it in production.
type MockVerifier struct {
	platform domain.Platform
}

func NewMockVerifier(platform domain.Platform) *MockVerifier {
	return &MockVerifier{platform: platform}
}

func (v *MockVerifier) Platform() domain.Platform {
	return v.platform
}

// Verify derives a stable transaction id from the receipt, so resubmitting
// the same receipt is detected as a duplicate.
func (v *MockVerifier) Verify(ctx context.Context, productID, receipt string) (*domain.VerifiedPurchase, error) {
	if receipt == "" {
		return nil, rejected("empty receipt")
	}
	sum := sha256.Sum256([]byte(receipt))
	txID := "MOCK-" + hex.EncodeToString(sum[:])[:16]
	raw, _ := json.Marshal(map[string]string{"mock": "true", "transactionId": txID, "productId": productID})
	return &domain.VerifiedPurchase{
		Platform:      v.platform,
		ProductID:     productID,
		TransactionID: txID,
		Raw:           raw,
	}, nil
}
