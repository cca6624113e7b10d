package service

import (
	"context"
	"fmt"

	"storyshelf/internal/domain"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Page is a normalized 1-based page request.
type Page struct {
	Page  int
	Limit int
}

// NewPage applies defaults: page 1, limit 20, limit capped at 100.
func NewPage(page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return Page{Page: page, Limit: limit}
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// PageResult wraps a page of items with the total count.
type PageResult[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// QueryService serves the read side of the coin economy.
type QueryService struct {
	tx TxRunner
}

func NewQueryService(tx TxRunner) *QueryService {
	return &QueryService{tx: tx}
}

// Balance is the latest ledger balance, 0 for a new account.
func (s *QueryService) Balance(ctx context.Context, userID int64) (int64, error) {
	balance, err := s.tx.Read().Ledger().LatestBalance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("latest balance: %w", err)
	}
	return balance, nil
}

// Ledger lists entries most recent first.
func (s *QueryService) Ledger(ctx context.Context, userID int64, p Page) (*PageResult[domain.LedgerEntry], error) {
	items, total, err := s.tx.Read().Ledger().List(ctx, userID, p.Limit, p.Offset())
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	return newPageResult(items, total, p), nil
}

// Receipts lists the user's receipts most recent first.
func (s *QueryService) Receipts(ctx context.Context, userID int64) ([]domain.IAPReceipt, error) {
	items, err := s.tx.Read().Receipts().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return nonNil(items), nil
}

func (s *QueryService) Entitlements(ctx context.Context, userID int64, p Page) (*PageResult[domain.EntitlementItem], error) {
	items, total, err := s.tx.Read().Entitlements().ListByUser(ctx, userID, p.Limit, p.Offset())
	if err != nil {
		return nil, fmt.Errorf("list entitlements: %w", err)
	}
	return newPageResult(items, total, p), nil
}

// CoinPacks lists active packs by sort order, optionally for one platform.
func (s *QueryService) CoinPacks(ctx context.Context, platform domain.Platform) ([]domain.CoinPack, error) {
	items, err := s.tx.Read().CoinPacks().ListActive(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("list coin packs: %w", err)
	}
	return nonNil(items), nil
}

// Bookstore lists active catalog items newest first.
func (s *QueryService) Bookstore(ctx context.Context) ([]domain.StoreItem, error) {
	items, err := s.tx.Read().Catalog().ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bookstore: %w", err)
	}
	return nonNil(items), nil
}

// AdminLedger is Ledger for any user.
func (s *QueryService) AdminLedger(ctx context.Context, userID int64, p Page) (*PageResult[domain.LedgerEntry], error) {
	return s.Ledger(ctx, userID, p)
}

// AdminReceipts lists all receipts joined with their owners.
func (s *QueryService) AdminReceipts(ctx context.Context, p Page) (*PageResult[domain.AdminReceipt], error) {
	items, total, err := s.tx.Read().Receipts().ListAll(ctx, p.Limit, p.Offset())
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return newPageResult(items, total, p), nil
}

func newPageResult[T any](items []T, total int, p Page) *PageResult[T] {
	return &PageResult[T]{Items: nonNil(items), Total: total, Page: p.Page, Limit: p.Limit}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
