package service

import (
	"context"

	"storyshelf/internal/domain"
	"storyshelf/internal/logger"
)

// AuditService handles audit logging. Writes are best-effort: failures are
// logged and never fail the calling workflow.
type AuditService struct {
	store AuditStore
}

// NewAuditService creates a new audit service
func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store}
}

// Log creates a new audit log entry
func (s *AuditService) Log(ctx context.Context, userID int64, action, category string, details map[string]any) {
	s.LogWithRequest(ctx, userID, action, category, "", "", details)
}

// LogWithRequest creates an audit log with request info (IP, User-Agent)
func (s *AuditService) LogWithRequest(ctx context.Context, userID int64, action, category, ip, userAgent string, details map[string]any) {
	if s == nil || s.store == nil {
		return
	}
	log := &domain.AuditLog{
		UserID:    userID,
		Action:    action,
		Category:  category,
		Details:   details,
		IP:        ip,
		UserAgent: userAgent,
	}

	if err := s.store.Insert(ctx, log); err != nil {
		logger.L(ctx).Error("failed to create audit log", "error", err, "action", action, "user_id", userID)
	}
}

// LogCredit logs an IAP credit or an ignored duplicate
func (s *AuditService) LogCredit(ctx context.Context, userID int64, receipt *domain.IAPReceipt, duplicate bool) {
	action := domain.AuditActionIAPCredit
	if duplicate {
		action = domain.AuditActionIAPDuplicate
	}
	s.Log(ctx, userID, action, domain.AuditCategoryIAP, map[string]any{
		"platform":       receipt.Platform,
		"transaction_id": receipt.TransactionID,
		"product_id":     receipt.ProductID,
		"coins":          receipt.CoinsGranted,
	})
}

// LogPurchase logs a coin spend
func (s *AuditService) LogPurchase(ctx context.Context, userID int64, order *domain.BookOrder) {
	s.Log(ctx, userID, domain.AuditActionBookPurchase, domain.AuditCategoryOrder, map[string]any{
		"order_id":      order.ID,
		"story_list_id": order.StoryListID,
		"price_coins":   order.PriceCoins,
	})
}

// LogAuth logs an auth event with request info
func (s *AuditService) LogAuth(ctx context.Context, userID int64, action string, meta RequestMeta, details map[string]any) {
	s.LogWithRequest(ctx, userID, action, domain.AuditCategoryAuth, meta.IP, meta.UserAgent, details)
}

// GetUserAuditLogs returns audit logs for a user
func (s *AuditService) GetUserAuditLogs(ctx context.Context, userID int64, limit int) ([]*domain.AuditLog, error) {
	return s.store.ListByUser(ctx, userID, limit)
}

// RequestMeta carries client details for audit rows.
type RequestMeta struct {
	IP        string
	UserAgent string
}
