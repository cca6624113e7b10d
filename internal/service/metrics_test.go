package service_test

import (
	"context"
	"testing"

	"storyshelf/internal/domain"
	"storyshelf/internal/service"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitCount(outcome string) float64 {
	return testutil.ToFloat64(service.CoinOpsTotal.WithLabelValues("iap_submit", outcome))
}

func TestSubmitReceiptRecordsOutcome(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "metrics@example.com", domain.RoleNormal)
	f.pack(t, "coins_100", 90, 5)

	applied := submitCount("applied")
	rejected := submitCount("verification_failed")
	unsupported := submitCount("unsupported_platform")

	f.verifier.txID = "GPA.31"

	_, err := f.iap.SubmitReceipt(context.Background(), u.ID, domain.PlatformGoogle, "coins_100", "purchase-token")
	require.NoError(t, err)

	f.verifier.err = errBoom
	_, err = f.iap.SubmitReceipt(context.Background(), u.ID, domain.PlatformGoogle, "coins_100", "bad")
	require.ErrorIs(t, err, domain.ErrExternalVerificationFailed)

	_, err = f.iap.SubmitReceipt(context.Background(), u.ID, domain.PlatformApple, "coins_100", "receipt")
	require.ErrorIs(t, err, domain.ErrUnsupportedPlatform)

	assert.Equal(t, applied+1, submitCount("applied"))
	assert.Equal(t, rejected+1, submitCount("verification_failed"))
	assert.Equal(t, unsupported+1, submitCount("unsupported_platform"))
}

func TestPurchaseRecordsInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "poor@example.com", domain.RoleNormal)
	f.story(t, 1, 40)

	counter := service.CoinOpsTotal.WithLabelValues("coin_purchase", "insufficient_balance")
	before := testutil.ToFloat64(counter)

	_, err := f.purchases.Purchase(context.Background(), u.ID, 1, "K1")
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
