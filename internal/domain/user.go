package domain

import "time"

// Role levels are ordinal: a higher level includes every lower privilege.
const (
	RoleNormal = 1
	RoleEditor = 5
	RoleAdmin  = 9
)

// Provider identifies a social login provider.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
	ProviderApple    Provider = "apple"
	ProviderWeChat   Provider = "wechat"
)

// ParseProvider maps a provider name onto the closed provider set.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(s); p {
	case ProviderGoogle, ProviderFacebook, ProviderApple, ProviderWeChat:
		return p, nil
	}
	return "", ErrUnsupportedProvider
}

// User is an account record. PasswordHash is empty for social-only accounts.
type User struct {
	ID            int64      `db:"id" json:"id"`
	Email         string     `db:"email" json:"email"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	Name          string     `db:"name" json:"name"`
	Provider      Provider   `db:"provider" json:"provider,omitempty"`
	ProviderID    string     `db:"provider_id" json:"-"`
	EmailVerified bool       `db:"email_verified" json:"emailVerified"`
	BirthDate     *time.Time `db:"birth_date" json:"birthDate,omitempty"`
	Gender        int        `db:"gender" json:"gender"`
	RoleLevel     int        `db:"role_level" json:"roleLevel"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsAdmin reports whether the account may use admin endpoints.
func (u *User) IsAdmin() bool {
	return u != nil && u.RoleLevel >= RoleAdmin
}

// ProfileUpdate carries the optional fields a user may change on their own profile.
type ProfileUpdate struct {
	Name      *string
	BirthDate *time.Time
	Gender    *int
}

// SocialIdentity is what a provider strategy returns for a verified credential.
type SocialIdentity struct {
	Provider      Provider
	ProviderID    string
	Email         string
	Name          string
	EmailVerified bool
}
