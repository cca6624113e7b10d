package memstore

import (
	"context"
	"sort"

	"storyshelf/internal/domain"
)

type ledgerStore struct{ v view }

// LockAccount only checks the account exists; the store mutex already
// serializes transactions.
func (s ledgerStore) LockAccount(ctx context.Context, userID int64) error {
	return s.v.with(func(st *state) error {
		if _, ok := st.users[userID]; !ok {
			return domain.ErrUserNotFound
		}
		return nil
	})
}

func (s ledgerStore) LatestBalance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := s.v.with(func(st *state) error {
		for i := len(st.ledger) - 1; i >= 0; i-- {
			if st.ledger[i].UserID == userID {
				balance = st.ledger[i].BalanceAfter
				return nil
			}
		}
		return nil
	})
	return balance, err
}

func (s ledgerStore) Insert(ctx context.Context, e *domain.LedgerEntry) error {
	return s.v.with(func(st *state) error {
		if e.ChangeAmount == 0 || e.BalanceAfter < 0 || !e.Type.Valid() {
			return domain.ErrInvalidAmount
		}
		e.ID = st.nextID()
		e.CreatedAt = s.v.now()
		st.ledger = append(st.ledger, *e)
		return nil
	})
}

func (s ledgerStore) List(ctx context.Context, userID int64, limit, offset int) ([]domain.LedgerEntry, int, error) {
	var out []domain.LedgerEntry
	err := s.v.with(func(st *state) error {
		for i := len(st.ledger) - 1; i >= 0; i-- {
			if st.ledger[i].UserID == userID {
				out = append(out, st.ledger[i])
			}
		}
		return nil
	})
	return page(out, limit, offset), len(out), err
}

type receiptStore struct{ v view }

func (s receiptStore) FindByTransaction(ctx context.Context, platform domain.Platform, transactionID string) (*domain.IAPReceipt, error) {
	var out *domain.IAPReceipt
	err := s.v.with(func(st *state) error {
		for _, r := range st.receipts {
			if r.Platform == platform && r.TransactionID == transactionID {
				out = &r
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (s receiptStore) Insert(ctx context.Context, r *domain.IAPReceipt) error {
	return s.v.with(func(st *state) error {
		for _, existing := range st.receipts {
			if existing.Platform == r.Platform && existing.TransactionID == r.TransactionID {
				return domain.ErrDuplicateOperation
			}
		}
		r.ID = st.nextID()
		r.CreatedAt = s.v.now()
		st.receipts = append(st.receipts, *r)
		return nil
	})
}

func (s receiptStore) ListByUser(ctx context.Context, userID int64) ([]domain.IAPReceipt, error) {
	var out []domain.IAPReceipt
	err := s.v.with(func(st *state) error {
		for i := len(st.receipts) - 1; i >= 0; i-- {
			if st.receipts[i].UserID == userID {
				out = append(out, st.receipts[i])
			}
		}
		return nil
	})
	return out, err
}

func (s receiptStore) ListAll(ctx context.Context, limit, offset int) ([]domain.AdminReceipt, int, error) {
	var out []domain.AdminReceipt
	err := s.v.with(func(st *state) error {
		for i := len(st.receipts) - 1; i >= 0; i-- {
			r := st.receipts[i]
			ar := domain.AdminReceipt{IAPReceipt: r}
			if u, ok := st.users[r.UserID]; ok {
				ar.Email = u.Email
				ar.Username = u.Name
			}
			for _, p := range st.packs {
				if p.Platform == r.Platform && p.ProductID == r.ProductID {
					ar.ProductName = p.Name
					ar.Price = p.Price
					ar.Currency = p.Currency
				}
			}
			out = append(out, ar)
		}
		return nil
	})
	return page(out, limit, offset), len(out), err
}

type coinPackStore struct{ v view }

func (s coinPackStore) FindActive(ctx context.Context, platform domain.Platform, productID string) (*domain.CoinPack, error) {
	var out *domain.CoinPack
	err := s.v.with(func(st *state) error {
		for _, p := range st.packs {
			if p.Platform == platform && p.ProductID == productID && p.IsActive {
				out = &p
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (s coinPackStore) ListActive(ctx context.Context, platform domain.Platform) ([]domain.CoinPack, error) {
	var out []domain.CoinPack
	err := s.v.with(func(st *state) error {
		for _, p := range st.packs {
			if p.IsActive && (platform == "" || p.Platform == platform) {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, err
}

func (s coinPackStore) Upsert(ctx context.Context, p *domain.CoinPack) error {
	return s.v.with(func(st *state) error {
		now := s.v.now()
		for i, existing := range st.packs {
			if existing.Platform == p.Platform && existing.ProductID == p.ProductID {
				p.ID = existing.ID
				p.CreatedAt = existing.CreatedAt
				p.UpdatedAt = now
				st.packs[i] = *p
				return nil
			}
		}
		p.ID = st.nextID()
		p.CreatedAt = now
		p.UpdatedAt = now
		st.packs = append(st.packs, *p)
		return nil
	})
}

type orderStore struct{ v view }

func (s orderStore) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.BookOrder, error) {
	var out *domain.BookOrder
	err := s.v.with(func(st *state) error {
		for _, o := range st.orders {
			if o.UserID == userID && o.IdempotencyKey == key {
				out = &o
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (s orderStore) Insert(ctx context.Context, o *domain.BookOrder) error {
	return s.v.with(func(st *state) error {
		for _, existing := range st.orders {
			if existing.UserID == o.UserID && existing.IdempotencyKey == o.IdempotencyKey {
				return domain.ErrDuplicateOperation
			}
		}
		o.ID = st.nextID()
		o.CreatedAt = s.v.now()
		st.orders = append(st.orders, *o)
		return nil
	})
}

type entitlementStore struct{ v view }

func (s entitlementStore) Exists(ctx context.Context, userID, storyListID int64) (bool, error) {
	var found bool
	err := s.v.with(func(st *state) error {
		for _, e := range st.ents {
			if e.UserID == userID && e.StoryListID == storyListID {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (s entitlementStore) Insert(ctx context.Context, e *domain.Entitlement) error {
	return s.v.with(func(st *state) error {
		for _, existing := range st.ents {
			if existing.UserID == e.UserID && existing.StoryListID == e.StoryListID {
				return domain.ErrAlreadyOwned
			}
		}
		e.ID = st.nextID()
		e.CreatedAt = s.v.now()
		st.ents = append(st.ents, *e)
		return nil
	})
}

func (s entitlementStore) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.EntitlementItem, int, error) {
	var out []domain.EntitlementItem
	err := s.v.with(func(st *state) error {
		for i := len(st.ents) - 1; i >= 0; i-- {
			e := st.ents[i]
			if e.UserID != userID {
				continue
			}
			item := domain.EntitlementItem{StoryListID: e.StoryListID, CreatedAt: e.CreatedAt}
			if si, ok := st.items[e.StoryListID]; ok {
				item.Story = &si
			}
			out = append(out, item)
		}
		return nil
	})
	return page(out, limit, offset), len(out), err
}

type catalogStore struct{ v view }

func (s catalogStore) FindActive(ctx context.Context, storyListID int64) (*domain.StoreItem, error) {
	var out *domain.StoreItem
	err := s.v.with(func(st *state) error {
		if item, ok := st.items[storyListID]; ok && item.IsActive {
			out = &item
		}
		return nil
	})
	return out, err
}

func (s catalogStore) ListActive(ctx context.Context) ([]domain.StoreItem, error) {
	var out []domain.StoreItem
	err := s.v.with(func(st *state) error {
		for _, item := range st.items {
			if item.IsActive {
				out = append(out, item)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].StoryListID > out[j].StoryListID
	})
	return out, err
}

func (s catalogStore) Upsert(ctx context.Context, item *domain.StoreItem) error {
	return s.v.with(func(st *state) error {
		if existing, ok := st.items[item.StoryListID]; ok {
			item.CreatedAt = existing.CreatedAt
		} else {
			item.CreatedAt = s.v.now()
		}
		st.items[item.StoryListID] = *item
		return nil
	})
}
