package service

import (
	"context"
	"fmt"

	"storyshelf/internal/domain"
	"storyshelf/internal/logger"
)

// UserService reads and edits profiles.
type UserService struct {
	tx    TxRunner
	audit *AuditService
}

func NewUserService(tx TxRunner, audit *AuditService) *UserService {
	return &UserService{tx: tx, audit: audit}
}

// Profile returns the account or domain.ErrUserNotFound.
func (s *UserService) Profile(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := s.tx.Read().Users().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

// UpdateProfile changes name, birth date and gender. Role is never writable here.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, upd domain.ProfileUpdate) (*domain.User, error) {
	u, err := s.tx.Read().Users().UpdateProfile(ctx, userID, upd)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	s.audit.Log(ctx, userID, domain.AuditActionProfileUpdate, domain.AuditCategoryAccount, nil)
	return u, nil
}

// DeleteAccount hard-deletes target with everything it owns. Only the
// owner or an admin may do this.
func (s *UserService) DeleteAccount(ctx context.Context, requesterID, targetID int64) error {
	err := s.tx.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if requesterID != targetID {
			requester, err := tx.Users().GetByID(ctx, requesterID)
			if err != nil {
				return fmt.Errorf("get requester: %w", err)
			}
			if !requester.IsAdmin() {
				return domain.ErrForbidden
			}
		}

		target, err := tx.Users().GetByID(ctx, targetID)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if target == nil {
			return domain.ErrUserNotFound
		}
		if err := tx.Ledger().LockAccount(ctx, targetID); err != nil {
			return fmt.Errorf("lock account: %w", err)
		}
		return tx.Users().Delete(ctx, targetID)
	})
	if err != nil {
		return err
	}
	logger.L(ctx).Info("account deleted", "user_id", targetID, "by", requesterID)
	if requesterID != targetID {
		// the target's own audit rows are gone with the account
		s.audit.Log(ctx, requesterID, domain.AuditActionAccountDelete, domain.AuditCategoryAccount, map[string]any{"target_user_id": targetID})
	}
	return nil
}
