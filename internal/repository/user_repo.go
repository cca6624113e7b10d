package repository

import (
	"context"
	"errors"
	"time"

	"storyshelf/internal/domain"

	"github.com/jackc/pgx/v5"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, name, COALESCE(provider, ''), COALESCE(provider_id, ''),
		       email_verified, birth_date, gender, role_level, created_at, updated_at`

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepository) GetByProvider(ctx context.Context, provider domain.Provider, providerID string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE provider = $1 AND provider_id = $2`, provider, providerID)
}

func (r *UserRepository) getOne(ctx context.Context, sql string, args ...any) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// Create inserts the account; a used email is domain.ErrEmailTaken
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	if u.RoleLevel == 0 {
		u.RoleLevel = domain.RoleNormal
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, name, provider, provider_id, email_verified, birth_date, gender, role_level)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		u.Email, u.PasswordHash, u.Name, string(u.Provider), u.ProviderID, u.EmailVerified, u.BirthDate, u.Gender, u.RoleLevel,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err, "users_email_key") {
		return domain.ErrEmailTaken
	}
	return err
}

// UpdateProfile applies the non-nil fields and returns the updated row
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, upd domain.ProfileUpdate) (*domain.User, error) {
	return r.getOne(ctx,
		`UPDATE users SET
			name = COALESCE($2, name),
			birth_date = COALESCE($3, birth_date),
			gender = COALESCE($4, gender),
			updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, upd.Name, upd.BirthDate, upd.Gender,
	)
}

func (r *UserRepository) SetEmailVerified(ctx context.Context, id int64) error {
	return r.exec(ctx, `UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1`, id)
}

func (r *UserRepository) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	return r.exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
}

func (r *UserRepository) LinkProvider(ctx context.Context, id int64, provider domain.Provider, providerID string) error {
	return r.exec(ctx, `UPDATE users SET provider = $2, provider_id = $3, updated_at = NOW() WHERE id = $1`, id, provider, providerID)
}

// Delete removes the account; owned rows go with it through ON DELETE CASCADE
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = $1`, id)
}

func (r *UserRepository) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var provider string
	var birthDate *time.Time
	if err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &provider, &u.ProviderID,
		&u.EmailVerified, &birthDate, &u.Gender, &u.RoleLevel, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Provider = domain.Provider(provider)
	u.BirthDate = birthDate
	return &u, nil
}
