package domain

import "time"

// LedgerType is the closed set of coin ledger entry kinds.
type LedgerType string

const (
	LedgerTypeIAP          LedgerType = "IAP"
	LedgerTypeIAPBonus     LedgerType = "IAP_BONUS"
	LedgerTypeBookPurchase LedgerType = "BOOK_PURCHASE"
)

// Valid reports whether t belongs to the closed set.
func (t LedgerType) Valid() bool {
	switch t {
	case LedgerTypeIAP, LedgerTypeIAPBonus, LedgerTypeBookPurchase:
		return true
	}
	return false
}

// LedgerEntry is one immutable coin ledger row. For a given user, entries
// ordered by ID satisfy BalanceAfter[n] = BalanceAfter[n-1] + ChangeAmount[n]
// and BalanceAfter[n] >= 0.
type LedgerEntry struct {
	ID           int64      `db:"id" json:"id"`
	UserID       int64      `db:"user_id" json:"userId"`
	ChangeAmount int64      `db:"change_amount" json:"amount"`
	BalanceAfter int64      `db:"balance_after" json:"balance"`
	Type         LedgerType `db:"type" json:"type"`
	Source       string     `db:"source" json:"source,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
}
