package repository

import (
	"context"
	"errors"

	"storyshelf/internal/domain"

	"github.com/jackc/pgx/v5"
)

type CoinPackRepository struct {
	db DBTX
}

func NewCoinPackRepository(db DBTX) *CoinPackRepository {
	return &CoinPackRepository{db: db}
}

const coinPackColumns = `id, platform, product_id, name, base_amount, bonus_amount, price, currency,
		       is_active, sort_order, created_at, updated_at`

// FindActive returns nil for an unknown or inactive pack
func (r *CoinPackRepository) FindActive(ctx context.Context, platform domain.Platform, productID string) (*domain.CoinPack, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+coinPackColumns+`
		FROM coin_packs
		WHERE platform = $1 AND product_id = $2 AND is_active
	`, platform, productID)

	p, err := scanCoinPack(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// ListActive returns active packs by sort order; an empty platform lists all
func (r *CoinPackRepository) ListActive(ctx context.Context, platform domain.Platform) ([]domain.CoinPack, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+coinPackColumns+`
		FROM coin_packs
		WHERE is_active AND ($1 = '' OR platform = $1)
		ORDER BY sort_order ASC, id ASC
	`, string(platform))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CoinPack
	for rows.Next() {
		p, err := scanCoinPack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Upsert creates or replaces a pack keyed by (platform, product_id)
func (r *CoinPackRepository) Upsert(ctx context.Context, p *domain.CoinPack) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO coin_packs (platform, product_id, name, base_amount, bonus_amount, price, currency, is_active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (platform, product_id) DO UPDATE SET
			name = EXCLUDED.name,
			base_amount = EXCLUDED.base_amount,
			bonus_amount = EXCLUDED.bonus_amount,
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			is_active = EXCLUDED.is_active,
			sort_order = EXCLUDED.sort_order,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, p.Platform, p.ProductID, p.Name, p.BaseAmount, p.BonusAmount, p.Price, p.Currency, p.IsActive, p.SortOrder,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func scanCoinPack(row pgx.Row) (*domain.CoinPack, error) {
	var p domain.CoinPack
	if err := row.Scan(
		&p.ID, &p.Platform, &p.ProductID, &p.Name, &p.BaseAmount, &p.BonusAmount, &p.Price, &p.Currency,
		&p.IsActive, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}
