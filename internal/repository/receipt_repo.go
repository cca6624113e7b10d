package repository

import (
	"context"
	"errors"

	"storyshelf/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type ReceiptRepository struct {
	db DBTX
}

func NewReceiptRepository(db DBTX) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

const receiptColumns = `id, transaction_id, platform, product_id, user_id, base_coins, bonus_coins,
		       coins_granted, status, raw_response, created_at`

// FindByTransaction returns nil when the receipt has not been seen
func (r *ReceiptRepository) FindByTransaction(ctx context.Context, platform domain.Platform, transactionID string) (*domain.IAPReceipt, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+receiptColumns+`
		FROM iap_receipts
		WHERE platform = $1 AND transaction_id = $2
	`, platform, transactionID)

	rc, err := scanReceipt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rc, err
}

// Insert writes a receipt; a repeated (platform, transaction_id) is
// domain.ErrDuplicateOperation
func (r *ReceiptRepository) Insert(ctx context.Context, rc *domain.IAPReceipt) error {
	var raw []byte
	if len(rc.RawResponse) > 0 {
		raw = rc.RawResponse
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO iap_receipts (transaction_id, platform, product_id, user_id, base_coins, bonus_coins, coins_granted, status, raw_response)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, rc.TransactionID, rc.Platform, rc.ProductID, rc.UserID, rc.BaseCoins, rc.BonusCoins, rc.CoinsGranted, rc.Status, raw).Scan(&rc.ID, &rc.CreatedAt)
	if isUniqueViolation(err, "") {
		return domain.ErrDuplicateOperation
	}
	return err
}

// ListByUser returns the user's receipts newest first
func (r *ReceiptRepository) ListByUser(ctx context.Context, userID int64) ([]domain.IAPReceipt, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+receiptColumns+`
		FROM iap_receipts
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.IAPReceipt
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rc)
	}
	return out, rows.Err()
}

// ListAll returns a page of receipts with owner and pack details
func (r *ReceiptRepository) ListAll(ctx context.Context, limit, offset int) ([]domain.AdminReceipt, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM iap_receipts`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT r.id, r.transaction_id, r.platform, r.product_id, r.user_id, r.base_coins, r.bonus_coins,
		       r.coins_granted, r.status, r.raw_response, r.created_at,
		       u.email, u.name, COALESCE(p.name, ''), COALESCE(p.price, 0), COALESCE(p.currency, '')
		FROM iap_receipts r
		JOIN users u ON u.id = r.user_id
		LEFT JOIN coin_packs p ON p.platform = r.platform AND p.product_id = r.product_id
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.AdminReceipt
	for rows.Next() {
		var ar domain.AdminReceipt
		var raw []byte
		var price decimal.Decimal
		if err := rows.Scan(
			&ar.ID, &ar.TransactionID, &ar.Platform, &ar.ProductID, &ar.UserID, &ar.BaseCoins, &ar.BonusCoins,
			&ar.CoinsGranted, &ar.Status, &raw, &ar.CreatedAt,
			&ar.Email, &ar.Username, &ar.ProductName, &price, &ar.Currency,
		); err != nil {
			return nil, 0, err
		}
		ar.RawResponse = raw
		ar.Price = price
		out = append(out, ar)
	}
	return out, total, rows.Err()
}

func scanReceipt(row pgx.Row) (*domain.IAPReceipt, error) {
	var rc domain.IAPReceipt
	var raw []byte
	if err := row.Scan(
		&rc.ID, &rc.TransactionID, &rc.Platform, &rc.ProductID, &rc.UserID, &rc.BaseCoins, &rc.BonusCoins,
		&rc.CoinsGranted, &rc.Status, &raw, &rc.CreatedAt,
	); err != nil {
		return nil, err
	}
	rc.RawResponse = raw
	return &rc, nil
}
