package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storyshelf/internal/domain"
	"storyshelf/internal/logger"
	"storyshelf/internal/traces"
)

// PurchaseResult is the outcome of one coin-spend request.
type PurchaseResult struct {
	Outcome     Outcome
	Order       *domain.BookOrder // nil when the item was already owned
	StoryListID int64
	PriceCoins  int64
	Balance     int64
}

// PurchaseService spends coins on catalog items.
type PurchaseService struct {
	tx     TxRunner
	ledger *CoinLedger
	audit  *AuditService
}

func NewPurchaseService(tx TxRunner, ledger *CoinLedger, audit *AuditService) *PurchaseService {
	return &PurchaseService{tx: tx, ledger: ledger, audit: audit}
}

// Purchase debits the item price, records the order and grants the
// entitlement in one transaction. Repeating a key returns the original order;
// buying an owned item is a no-op success.
func (s *PurchaseService) Purchase(ctx context.Context, userID, storyListID int64, idempotencyKey string) (*PurchaseResult, error) {
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey == "" {
		return nil, domain.ErrIdempotencyKeyRequired
	}

	ctx, span := traces.StartSpan(ctx, "order.coin_purchase", traces.UserID(userID), traces.StoryListID(storyListID))
	defer span.End()
	done := observeOp("coin_purchase")

	res, err := s.purchase(ctx, userID, storyListID, idempotencyKey)
	switch {
	case errors.Is(err, domain.ErrDuplicateOperation), errors.Is(err, domain.ErrAlreadyOwned):
		// a concurrent request committed first; report what it left behind
		res, err = s.priorPurchase(ctx, userID, storyListID, idempotencyKey)
	}

	var outcome Outcome
	if res != nil {
		outcome = res.Outcome
	}
	done(outcomeLabel(outcome, err))
	span.SetAttributes(traces.Outcome(outcomeLabel(outcome, err)))
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			logger.L(ctx).Info("purchase rejected: insufficient balance", "user_id", userID, "story_list_id", storyListID)
		}
		return nil, err
	}

	if res.Outcome == OutcomeApplied {
		CoinsMovedTotal.WithLabelValues("debit").Add(float64(res.PriceCoins))
		logger.L(ctx).Info("book purchased",
			"user_id", userID, "story_list_id", storyListID, "order_id", res.Order.ID,
			"price", res.PriceCoins, "balance", res.Balance)
		s.audit.LogPurchase(ctx, userID, res.Order)
	}
	return res, nil
}

func (s *PurchaseService) purchase(ctx context.Context, userID, storyListID int64, key string) (*PurchaseResult, error) {
	var res *PurchaseResult
	err := s.tx.InTx(ctx, func(ctx context.Context, tx Tx) error {
		ledger := tx.Ledger()
		if err := s.ledger.Lock(ctx, ledger, userID); err != nil {
			return err
		}

		prior, done, err := s.shortCircuit(ctx, tx, userID, storyListID, key)
		if err != nil || done {
			res = prior
			return err
		}

		item, err := tx.Catalog().FindActive(ctx, storyListID)
		if err != nil {
			return fmt.Errorf("find store item: %w", err)
		}
		if item == nil {
			return domain.ErrProductNotFound
		}

		balance, err := s.ledger.Balance(ctx, ledger, userID)
		if err != nil {
			return err
		}
		if balance < item.PriceCoins {
			return domain.ErrInsufficientBalance
		}

		order := &domain.BookOrder{
			UserID:         userID,
			StoryListID:    storyListID,
			PriceCoins:     item.PriceCoins,
			Status:         domain.OrderStatusSuccess,
			IdempotencyKey: key,
		}
		if err := tx.Orders().Insert(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		source := fmt.Sprintf("BOOK_ORDER:%d|STORY:%d", order.ID, storyListID)
		entry, err := s.ledger.ApplyDelta(ctx, ledger, userID, -item.PriceCoins, domain.LedgerTypeBookPurchase, source)
		if err != nil {
			return err
		}

		if err := tx.Entitlements().Insert(ctx, &domain.Entitlement{UserID: userID, StoryListID: storyListID}); err != nil {
			return fmt.Errorf("insert entitlement: %w", err)
		}

		res = &PurchaseResult{
			Outcome:     OutcomeApplied,
			Order:       order,
			StoryListID: storyListID,
			PriceCoins:  item.PriceCoins,
			Balance:     entry.BalanceAfter,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// shortCircuit resolves requests that must not write: a repeated key, then
// an already owned item.
func (s *PurchaseService) shortCircuit(ctx context.Context, tx Tx, userID, storyListID int64, key string) (*PurchaseResult, bool, error) {
	order, err := tx.Orders().FindByIdempotencyKey(ctx, userID, key)
	if err != nil {
		return nil, false, fmt.Errorf("find order: %w", err)
	}

	var res *PurchaseResult
	if order != nil {
		res = &PurchaseResult{Outcome: OutcomeDuplicate, Order: order, StoryListID: order.StoryListID, PriceCoins: order.PriceCoins}
	} else {
		owned, err := tx.Entitlements().Exists(ctx, userID, storyListID)
		if err != nil {
			return nil, false, fmt.Errorf("check entitlement: %w", err)
		}
		if !owned {
			return nil, false, nil
		}
		res = &PurchaseResult{Outcome: OutcomeAlreadyOwned, StoryListID: storyListID}
	}

	balance, err := s.ledger.Balance(ctx, tx.Ledger(), userID)
	if err != nil {
		return nil, false, err
	}
	res.Balance = balance
	return res, true, nil
}

func (s *PurchaseService) priorPurchase(ctx context.Context, userID, storyListID int64, key string) (*PurchaseResult, error) {
	var res *PurchaseResult
	err := s.tx.InTx(ctx, func(ctx context.Context, tx Tx) error {
		prior, done, err := s.shortCircuit(ctx, tx, userID, storyListID, key)
		if err != nil {
			return err
		}
		if !done {
			return domain.ErrDuplicateOperation
		}
		res = prior
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
