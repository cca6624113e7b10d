package domain

import "time"

// AuditLog represents an audit log entry for tracking important actions
type AuditLog struct {
	ID        int64          `db:"id" json:"id"`
	UserID    int64          `db:"user_id" json:"userId"`
	Action    string         `db:"action" json:"action"`
	Category  string         `db:"category" json:"category"`
	Details   map[string]any `db:"details" json:"details"`
	IP        string         `db:"ip" json:"ip,omitempty"`
	UserAgent string         `db:"user_agent" json:"userAgent,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
}

// Audit action categories
const (
	AuditCategoryAuth    = "auth"
	AuditCategoryAccount = "account"
	AuditCategoryIAP     = "iap"
	AuditCategoryOrder   = "order"
)

// Audit actions
const (
	// Auth actions
	AuditActionRegister      = "register"
	AuditActionLogin         = "login"
	AuditActionSocialLogin   = "social_login"
	AuditActionLogout        = "logout"
	AuditActionEmailVerified = "email_verified"
	AuditActionPasswordReset = "password_reset"

	// Account actions
	AuditActionProfileUpdate = "profile_update"
	AuditActionAccountDelete = "account_delete"

	// Coin actions
	AuditActionIAPCredit    = "iap_credit"
	AuditActionIAPDuplicate = "iap_duplicate"
	AuditActionBookPurchase = "book_purchase"
)
