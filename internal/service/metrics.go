package service

import (
	"errors"
	"time"

	"storyshelf/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CoinOpsTotal counts coin workflow results by operation and outcome.
	CoinOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storyshelf",
			Name:      "coin_operations_total",
			Help:      "Coin workflow results by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	// CoinsMovedTotal sums coins credited and debited.
	CoinsMovedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storyshelf",
			Name:      "coins_moved_total",
			Help:      "Coins credited or debited through the ledger.",
		},
		[]string{"direction"},
	)

	CoinOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storyshelf",
			Name:      "coin_operation_duration_seconds",
			Help:      "Coin workflow duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(CoinOpsTotal, CoinsMovedTotal, CoinOpDuration)
}

// observeOp returns a func recording the duration and outcome of one call.
func observeOp(op string) func(outcome string) {
	start := time.Now()
	return func(outcome string) {
		CoinOpsTotal.WithLabelValues(op, outcome).Inc()
		CoinOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// outcomeLabel folds an error into the label set.
func outcomeLabel(o Outcome, err error) string {
	switch {
	case err == nil:
		return o.String()
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, domain.ErrExternalVerificationFailed):
		return "verification_failed"
	case errors.Is(err, domain.ErrUnsupportedPlatform):
		return "unsupported_platform"
	}
	return "error"
}
