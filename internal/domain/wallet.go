package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Platform is the app store a purchase was made on.
type Platform string

const (
	PlatformGoogle Platform = "GOOGLE"
	PlatformApple  Platform = "APPLE"
)

// ParsePlatform maps user input onto the closed platform set.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToUpper(strings.TrimSpace(s))); p {
	case PlatformGoogle, PlatformApple:
		return p, nil
	}
	return "", ErrUnsupportedPlatform
}

// ReceiptStatusSuccess is the only status written for a credited receipt.
const ReceiptStatusSuccess = "SUCCESS"

// CoinPack translates a store product into a coin grant.
type CoinPack struct {
	ID          int64           `db:"id" json:"id"`
	Platform    Platform        `db:"platform" json:"platform"`
	ProductID   string          `db:"product_id" json:"productId"`
	Name        string          `db:"name" json:"name"`
	BaseAmount  int64           `db:"base_amount" json:"amount"`
	BonusAmount int64           `db:"bonus_amount" json:"bonusAmount"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Currency    string          `db:"currency" json:"currency"`
	IsActive    bool            `db:"is_active" json:"isActive"`
	SortOrder   int             `db:"sort_order" json:"sortOrder"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// TotalCoins is base plus bonus.
func (p *CoinPack) TotalCoins() int64 {
	return p.BaseAmount + p.BonusAmount
}

// IAPReceipt records one verified external purchase. (Platform, TransactionID) is unique.
type IAPReceipt struct {
	ID            int64           `db:"id" json:"id"`
	TransactionID string          `db:"transaction_id" json:"transactionId"`
	Platform      Platform        `db:"platform" json:"platform"`
	ProductID     string          `db:"product_id" json:"productId"`
	UserID        int64           `db:"user_id" json:"userId"`
	BaseCoins     int64           `db:"base_coins" json:"baseCoins"`
	BonusCoins    int64           `db:"bonus_coins" json:"bonusCoins"`
	CoinsGranted  int64           `db:"coins_granted" json:"coins"`
	Status        string          `db:"status" json:"status"`
	RawResponse   json.RawMessage `db:"raw_response" json:"-"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

// VerifiedPurchase is what a store verifier hands back for an accepted receipt.
type VerifiedPurchase struct {
	Platform      Platform
	ProductID     string
	TransactionID string
	Raw           json.RawMessage
}

// AdminReceipt is a receipt joined with its owner for admin listings.
type AdminReceipt struct {
	IAPReceipt
	Email       string          `json:"email"`
	Username    string          `json:"username"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
}
