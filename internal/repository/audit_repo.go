package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"storyshelf/internal/domain"

	"github.com/jackc/pgx/v5"
)

const maxAuditPage = 500

// AuditRepository stores account, auth and coin events in audit_logs. It
// writes through the pool, outside workflow transactions.
type AuditRepository struct {
	db DBTX
}

func NewAuditRepository(db DBTX) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert writes one event and fills its id and timestamp. Nil details are stored as {}.
func (r *AuditRepository) Insert(ctx context.Context, entry *domain.AuditLog) error {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode audit details for %s: %w", entry.Action, err)
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO audit_logs (user_id, action, category, details, ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, entry.UserID, entry.Action, entry.Category, payload, entry.IP, entry.UserAgent).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit %s for user %d: %w", entry.Action, entry.UserID, err)
	}
	return nil
}

// ListByUser returns up to limit events for the user, newest first. A
// non-positive limit means the page cap.
func (r *AuditRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*domain.AuditLog, error) {
	if limit <= 0 || limit > maxAuditPage {
		limit = maxAuditPage
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, action, category, details, ip, user_agent, created_at
		FROM audit_logs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanAuditRow)
}

func scanAuditRow(row pgx.CollectableRow) (*domain.AuditLog, error) {
	var (
		entry   domain.AuditLog
		payload []byte
	)
	if err := row.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.Category, &payload, &entry.IP, &entry.UserAgent, &entry.CreatedAt); err != nil {
		return nil, err
	}
	// Rows written by hand may hold non-object JSON; keep them readable.
	if json.Unmarshal(payload, &entry.Details) != nil || entry.Details == nil {
		entry.Details = map[string]any{}
	}
	return &entry, nil
}
