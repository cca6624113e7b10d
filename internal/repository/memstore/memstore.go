// Package memstore is an in-memory implementation of the service stores
// for development mode and tests. Transactions run one at a time under a
// single mutex on a copy of the state, swapped in on commit.
package memstore

import (
	"context"
	"sync"
	"time"

	"storyshelf/internal/domain"
	"storyshelf/internal/service"
)

type state struct {
	seq      int64
	users    map[int64]domain.User
	ledger   []domain.LedgerEntry
	receipts []domain.IAPReceipt
	packs    []domain.CoinPack
	items    map[int64]domain.StoreItem
	orders   []domain.BookOrder
	ents     []domain.Entitlement
	audit    []domain.AuditLog
}

func newState() *state {
	return &state{
		users: make(map[int64]domain.User),
		items: make(map[int64]domain.StoreItem),
	}
}

func (st *state) clone() *state {
	cp := &state{
		seq:      st.seq,
		users:    make(map[int64]domain.User, len(st.users)),
		ledger:   append([]domain.LedgerEntry(nil), st.ledger...),
		receipts: append([]domain.IAPReceipt(nil), st.receipts...),
		packs:    append([]domain.CoinPack(nil), st.packs...),
		items:    make(map[int64]domain.StoreItem, len(st.items)),
		orders:   append([]domain.BookOrder(nil), st.orders...),
		ents:     append([]domain.Entitlement(nil), st.ents...),
		audit:    append([]domain.AuditLog(nil), st.audit...),
	}
	for k, v := range st.users {
		cp.users[k] = v
	}
	for k, v := range st.items {
		cp.items[k] = v
	}
	return cp
}

func (st *state) nextID() int64 {
	st.seq++
	return st.seq
}

// Store implements service.TxRunner and service.AuditStore.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

// InTx runs fn against a private copy of the state. The copy replaces the
// shared state only when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx service.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(ctx, view{st: work, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Read returns stores that lock per call.
func (s *Store) Read() service.Tx {
	return view{root: s, now: s.now}
}

// Audit returns the audit log store.
func (s *Store) Audit() service.AuditStore {
	return auditStore{view{root: s, now: s.now}}
}

// view is either bound to a transaction copy (st) or to the shared state (root).
type view struct {
	root *Store
	st   *state
	now  func() time.Time
}

func (v view) with(fn func(st *state) error) error {
	if v.st != nil {
		return fn(v.st)
	}
	v.root.mu.Lock()
	defer v.root.mu.Unlock()
	return fn(v.root.st)
}

func (v view) Ledger() service.LedgerStore { return ledgerStore{v} }
func (v view) Receipts() service.ReceiptStore { return receiptStore{v} }
func (v view) CoinPacks() service.CoinPackStore { return coinPackStore{v} }
func (v view) Orders() service.OrderStore { return orderStore{v} }
func (v view) Entitlements() service.EntitlementStore { return entitlementStore{v} }
func (v view) Catalog() service.CatalogStore { return catalogStore{v} }
func (v view) Users() service.UserStore { return userStore{v} }

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

type userStore struct{ v view }

func (s userStore) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var out *domain.User
	err := s.v.with(func(st *state) error {
		if u, ok := st.users[id]; ok {
			out = &u
		}
		return nil
	})
	return out, err
}

func (s userStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var out *domain.User
	err := s.v.with(func(st *state) error {
		for _, u := range st.users {
			if u.Email == email {
				out = &u
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (s userStore) GetByProvider(ctx context.Context, provider domain.Provider, providerID string) (*domain.User, error) {
	var out *domain.User
	err := s.v.with(func(st *state) error {
		for _, u := range st.users {
			if u.Provider == provider && u.ProviderID == providerID {
				out = &u
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (s userStore) Create(ctx context.Context, u *domain.User) error {
	return s.v.with(func(st *state) error {
		for _, existing := range st.users {
			if existing.Email == u.Email {
				return domain.ErrEmailTaken
			}
		}
		if u.RoleLevel == 0 {
			u.RoleLevel = domain.RoleNormal
		}
		u.ID = st.nextID()
		u.CreatedAt = s.v.now()
		u.UpdatedAt = u.CreatedAt
		st.users[u.ID] = *u
		return nil
	})
}

func (s userStore) update(id int64, fn func(u *domain.User)) (*domain.User, error) {
	var out *domain.User
	err := s.v.with(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return nil
		}
		fn(&u)
		u.UpdatedAt = s.v.now()
		st.users[id] = u
		out = &u
		return nil
	})
	return out, err
}

func (s userStore) UpdateProfile(ctx context.Context, id int64, upd domain.ProfileUpdate) (*domain.User, error) {
	return s.update(id, func(u *domain.User) {
		if upd.Name != nil {
			u.Name = *upd.Name
		}
		if upd.BirthDate != nil {
			bd := *upd.BirthDate
			u.BirthDate = &bd
		}
		if upd.Gender != nil {
			u.Gender = *upd.Gender
		}
	})
}

func (s userStore) SetEmailVerified(ctx context.Context, id int64) error {
	u, err := s.update(id, func(u *domain.User) { u.EmailVerified = true })
	if err == nil && u == nil {
		return domain.ErrUserNotFound
	}
	return err
}

func (s userStore) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	u, err := s.update(id, func(u *domain.User) { u.PasswordHash = hash })
	if err == nil && u == nil {
		return domain.ErrUserNotFound
	}
	return err
}

func (s userStore) LinkProvider(ctx context.Context, id int64, provider domain.Provider, providerID string) error {
	u, err := s.update(id, func(u *domain.User) {
		u.Provider = provider
		u.ProviderID = providerID
	})
	if err == nil && u == nil {
		return domain.ErrUserNotFound
	}
	return err
}

// Delete mirrors ON DELETE CASCADE.
func (s userStore) Delete(ctx context.Context, id int64) error {
	return s.v.with(func(st *state) error {
		if _, ok := st.users[id]; !ok {
			return domain.ErrUserNotFound
		}
		delete(st.users, id)
		st.ledger = removeWhere(st.ledger, func(e domain.LedgerEntry) bool { return e.UserID == id })
		st.receipts = removeWhere(st.receipts, func(r domain.IAPReceipt) bool { return r.UserID == id })
		st.orders = removeWhere(st.orders, func(o domain.BookOrder) bool { return o.UserID == id })
		st.ents = removeWhere(st.ents, func(e domain.Entitlement) bool { return e.UserID == id })
		st.audit = removeWhere(st.audit, func(a domain.AuditLog) bool { return a.UserID == id })
		return nil
	})
}

func removeWhere[T any](items []T, match func(T) bool) []T {
	out := items[:0]
	for _, it := range items {
		if !match(it) {
			out = append(out, it)
		}
	}
	return out
}

type auditStore struct{ v view }

func (s auditStore) Insert(ctx context.Context, log *domain.AuditLog) error {
	return s.v.with(func(st *state) error {
		log.ID = st.nextID()
		log.CreatedAt = s.v.now()
		st.audit = append(st.audit, *log)
		return nil
	})
}

func (s auditStore) ListByUser(ctx context.Context, userID int64, limit int) ([]*domain.AuditLog, error) {
	var out []*domain.AuditLog
	err := s.v.with(func(st *state) error {
		for i := len(st.audit) - 1; i >= 0; i-- {
			if st.audit[i].UserID != userID {
				continue
			}
			a := st.audit[i]
			out = append(out, &a)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}
