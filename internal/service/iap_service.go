package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"storyshelf/internal/domain"
	"storyshelf/internal/logger"
	"storyshelf/internal/traces"
)

// ReceiptVerifier checks a store receipt against one platform.
type ReceiptVerifier interface {
	Platform() domain.Platform
	Verify(ctx context.Context, productID, receipt string) (*domain.VerifiedPurchase, error)
}

// CreditResult is the outcome of crediting one verified purchase.
type CreditResult struct {
	Outcome      Outcome
	Receipt      *domain.IAPReceipt
	CoinsGranted int64
	Balance      int64
}

// IAPService turns verified store purchases into coins.
type IAPService struct {
	tx        TxRunner
	ledger    *CoinLedger
	audit     *AuditService
	verifiers map[domain.Platform]ReceiptVerifier
}

// NewIAPService creates the crediting workflow with one verifier per platform.
func NewIAPService(tx TxRunner, ledger *CoinLedger, audit *AuditService, verifiers ...ReceiptVerifier) *IAPService {
	s := &IAPService{
		tx:        tx,
		ledger:    ledger,
		audit:     audit,
		verifiers: make(map[domain.Platform]ReceiptVerifier, len(verifiers)),
	}
	for _, v := range verifiers {
		s.verifiers[v.Platform()] = v
	}
	return s
}

// SubmitReceipt verifies the receipt with the platform once and credits it.
// A rejected receipt never reaches the ledger.
func (s *IAPService) SubmitReceipt(ctx context.Context, userID int64, platform domain.Platform, productID, receipt string) (*CreditResult, error) {
	done := observeOp("iap_submit")

	purchase, err := s.verify(ctx, userID, platform, productID, receipt)
	if err != nil {
		done(outcomeLabel(0, err))
		return nil, err
	}

	res, err := s.Credit(ctx, userID, platform, productID, purchase.TransactionID, purchase.Raw)
	var outcome Outcome
	if res != nil {
		outcome = res.Outcome
	}
	done(outcomeLabel(outcome, err))
	return res, err
}

func (s *IAPService) verify(ctx context.Context, userID int64, platform domain.Platform, productID, receipt string) (*domain.VerifiedPurchase, error) {
	verifier, ok := s.verifiers[platform]
	if !ok {
		return nil, domain.ErrUnsupportedPlatform
	}

	purchase, err := verifier.Verify(ctx, productID, receipt)
	if err != nil {
		logger.L(ctx).Warn("receipt verification failed",
			"user_id", userID, "platform", platform, "product_id", productID, "error", err)
		if errors.Is(err, domain.ErrExternalVerificationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalVerificationFailed, err)
	}
	if purchase.TransactionID == "" || (purchase.ProductID != "" && purchase.ProductID != productID) {
		return nil, fmt.Errorf("%w: receipt does not match product %s", domain.ErrExternalVerificationFailed, productID)
	}
	return purchase, nil
}

// Credit grants the coin pack for an externally verified purchase. A second
// call with the same (platform, transactionID) writes nothing and returns the
// coins granted the first time with the caller's current balance.
func (s *IAPService) Credit(ctx context.Context, userID int64, platform domain.Platform, productID, transactionID string, raw json.RawMessage) (*CreditResult, error) {
	ctx, span := traces.StartSpan(ctx, "iap.credit",
		traces.UserID(userID), traces.Platform(string(platform)), traces.TransactionID(transactionID))
	defer span.End()
	done := observeOp("iap_credit")

	res, err := s.credit(ctx, userID, platform, productID, transactionID, raw)
	if errors.Is(err, domain.ErrDuplicateOperation) {
		// lost the insert race; the transaction is gone, so read the winner
		res, err = s.priorCredit(ctx, userID, platform, transactionID)
	}

	var outcome Outcome
	if res != nil {
		outcome = res.Outcome
	}
	done(outcomeLabel(outcome, err))
	span.SetAttributes(traces.Outcome(outcomeLabel(outcome, err)))
	if err != nil {
		return nil, err
	}

	switch res.Outcome {
	case OutcomeApplied:
		CoinsMovedTotal.WithLabelValues("credit").Add(float64(res.CoinsGranted))
		logger.L(ctx).Info("iap credited",
			"user_id", userID, "platform", platform, "transaction_id", transactionID,
			"coins", res.CoinsGranted, "balance", res.Balance)
		s.audit.LogCredit(ctx, userID, res.Receipt, false)
	case OutcomeDuplicate:
		logger.L(ctx).Info("iap duplicate ignored",
			"user_id", userID, "platform", platform, "transaction_id", transactionID)
		if res.Receipt.UserID != userID {
			logger.L(ctx).Warn("receipt replayed by another account",
				"user_id", userID, "owner_id", res.Receipt.UserID, "transaction_id", transactionID)
		}
		s.audit.LogCredit(ctx, userID, res.Receipt, true)
	}
	return res, nil
}

func (s *IAPService) credit(ctx context.Context, userID int64, platform domain.Platform, productID, transactionID string, raw json.RawMessage) (*CreditResult, error) {
	var res *CreditResult
	err := s.tx.InTx(ctx, func(ctx context.Context, tx Tx) error {
		pack, err := tx.CoinPacks().FindActive(ctx, platform, productID)
		if err != nil {
			return fmt.Errorf("find coin pack: %w", err)
		}
		if pack == nil {
			return domain.ErrProductNotFound
		}

		ledger := tx.Ledger()
		if err := s.ledger.Lock(ctx, ledger, userID); err != nil {
			return err
		}

		prior, err := tx.Receipts().FindByTransaction(ctx, platform, transactionID)
		if err != nil {
			return fmt.Errorf("find receipt: %w", err)
		}
		if prior != nil {
			balance, err := s.ledger.Balance(ctx, ledger, userID)
			if err != nil {
				return err
			}
			res = &CreditResult{Outcome: OutcomeDuplicate, Receipt: prior, CoinsGranted: prior.CoinsGranted, Balance: balance}
			return nil
		}

		receipt := &domain.IAPReceipt{
			TransactionID: transactionID,
			Platform:      platform,
			ProductID:     productID,
			UserID:        userID,
			BaseCoins:     pack.BaseAmount,
			BonusCoins:    pack.BonusAmount,
			CoinsGranted:  pack.TotalCoins(),
			Status:        domain.ReceiptStatusSuccess,
			RawResponse:   raw,
		}
		if err := tx.Receipts().Insert(ctx, receipt); err != nil {
			return fmt.Errorf("insert receipt: %w", err)
		}

		source := fmt.Sprintf("ORDER:%s|PROD:%s", transactionID, productID)
		entry, err := s.ledger.ApplyDelta(ctx, ledger, userID, pack.BaseAmount, domain.LedgerTypeIAP, source)
		if err != nil {
			return err
		}
		if pack.BonusAmount > 0 {
			entry, err = s.ledger.ApplyDelta(ctx, ledger, userID, pack.BonusAmount, domain.LedgerTypeIAPBonus, source+"_BONUS")
			if err != nil {
				return err
			}
		}

		res = &CreditResult{Outcome: OutcomeApplied, Receipt: receipt, CoinsGranted: receipt.CoinsGranted, Balance: entry.BalanceAfter}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *IAPService) priorCredit(ctx context.Context, userID int64, platform domain.Platform, transactionID string) (*CreditResult, error) {
	var res *CreditResult
	err := s.tx.InTx(ctx, func(ctx context.Context, tx Tx) error {
		prior, err := tx.Receipts().FindByTransaction(ctx, platform, transactionID)
		if err != nil {
			return fmt.Errorf("find receipt: %w", err)
		}
		if prior == nil {
			return domain.ErrDuplicateOperation
		}
		balance, err := tx.Ledger().LatestBalance(ctx, userID)
		if err != nil {
			return fmt.Errorf("latest balance: %w", err)
		}
		res = &CreditResult{Outcome: OutcomeDuplicate, Receipt: prior, CoinsGranted: prior.CoinsGranted, Balance: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
