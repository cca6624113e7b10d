package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"storyshelf/internal/domain"
	"storyshelf/internal/logger"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	verifyPrefix = "verify:"
	resetPrefix  = "reset:"

	verifyTTL = 24 * time.Hour
	resetTTL  = 30 * time.Minute

	bcryptCost = 10
)

// IdentityVerifier checks a social login credential with one provider.
type IdentityVerifier interface {
	Provider() domain.Provider
	Verify(ctx context.Context, credential string) (*domain.SocialIdentity, error)
}

// RegisterInput is a password sign-up. Role is not accepted from clients.
type RegisterInput struct {
	Email     string
	Password  string
	Name      string
	BirthDate *time.Time
	Gender    int
}

// AuthService owns sign-up, login and the email link flows.
type AuthService struct {
	users       UserStore
	tokens      *TokenService
	kv          KVStore
	mailer      Mailer
	audit       *AuditService
	frontendURL string
	providers   map[domain.Provider]IdentityVerifier
}

func NewAuthService(users UserStore, tokens *TokenService, kv KVStore, mailer Mailer, audit *AuditService, frontendURL string, providers ...IdentityVerifier) *AuthService {
	s := &AuthService{
		users:       users,
		tokens:      tokens,
		kv:          kv,
		mailer:      mailer,
		audit:       audit,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		providers:   make(map[domain.Provider]IdentityVerifier, len(providers)),
	}
	for _, p := range providers {
		s.providers[p.Provider()] = p
	}
	return s
}

// Register creates an unverified account and mails the verification link.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email := normalizeEmail(in.Email)
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &domain.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(in.Name),
		BirthDate:    in.BirthDate,
		Gender:       in.Gender,
		RoleLevel:    domain.RoleNormal,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	if err := s.sendVerification(ctx, u); err != nil {
		return nil, err
	}

	logger.L(ctx).Info("user registered", "user_id", u.ID)
	s.audit.Log(ctx, u.ID, domain.AuditActionRegister, domain.AuditCategoryAuth, nil)
	return u, nil
}

// Login checks the password and requires a verified email.
func (s *AuthService) Login(ctx context.Context, email, password string, meta RequestMeta) (*TokenPair, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u == nil || u.PasswordHash == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !u.EmailVerified {
		return nil, domain.ErrEmailNotVerified
	}

	pair, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	s.audit.LogAuth(ctx, u.ID, domain.AuditActionLogin, meta, nil)
	return pair, nil
}

// SocialLogin verifies the credential with the provider strategy, then finds
// the account by provider id or email, creating a verified one if needed.
func (s *AuthService) SocialLogin(ctx context.Context, provider domain.Provider, credential string, meta RequestMeta) (*TokenPair, error) {
	verifier, ok := s.providers[provider]
	if !ok {
		return nil, domain.ErrUnsupportedProvider
	}

	id, err := verifier.Verify(ctx, credential)
	if err != nil {
		logger.L(ctx).Warn("social login rejected", "provider", provider, "error", err)
		if errors.Is(err, domain.ErrIdentityVerification) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrIdentityVerification, err)
	}
	if id.Email == "" {
		return nil, fmt.Errorf("%w: provider returned no email", domain.ErrIdentityVerification)
	}

	u, err := s.findSocialUser(ctx, id)
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	s.audit.LogAuth(ctx, u.ID, domain.AuditActionSocialLogin, meta, map[string]any{"provider": provider})
	return pair, nil
}

func (s *AuthService) findSocialUser(ctx context.Context, id *domain.SocialIdentity) (*domain.User, error) {
	if id.ProviderID != "" {
		u, err := s.users.GetByProvider(ctx, id.Provider, id.ProviderID)
		if err != nil {
			return nil, fmt.Errorf("find user by provider: %w", err)
		}
		if u != nil {
			return u, nil
		}
	}

	email := normalizeEmail(id.Email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u != nil {
		if u.Provider == "" && id.ProviderID != "" {
			if err := s.users.LinkProvider(ctx, u.ID, id.Provider, id.ProviderID); err != nil {
				return nil, fmt.Errorf("link provider: %w", err)
			}
		}
		if !u.EmailVerified && id.EmailVerified {
			if err := s.users.SetEmailVerified(ctx, u.ID); err != nil {
				return nil, fmt.Errorf("mark verified: %w", err)
			}
			u.EmailVerified = true
		}
		return u, nil
	}

	u = &domain.User{
		Email:         email,
		Name:          id.Name,
		Provider:      id.Provider,
		ProviderID:    id.ProviderID,
		EmailVerified: true,
		RoleLevel:     domain.RoleNormal,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	logger.L(ctx).Info("social user created", "user_id", u.ID, "provider", id.Provider)
	return u, nil
}

// Refresh validates the refresh token and rotates the access token when it
// is close to expiry.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, oldAccess string) (*RefreshResult, error) {
	claims, err := s.tokens.ValidateRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	if !u.EmailVerified {
		return nil, domain.ErrEmailNotVerified
	}

	return s.tokens.Rotate(ctx, u.ID, oldAccess)
}

// Logout revokes the refresh token and, when given, the access token.
func (s *AuthService) Logout(ctx context.Context, refreshToken, accessToken string) error {
	userID, err := s.tokens.Revoke(ctx, refreshToken, accessToken)
	if err != nil {
		return err
	}
	s.audit.Log(ctx, userID, domain.AuditActionLogout, domain.AuditCategoryAuth, nil)
	return nil
}

// VerifyEmail consumes a verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.consume(ctx, verifyPrefix+token)
	if err != nil {
		return err
	}
	if err := s.users.SetEmailVerified(ctx, userID); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	s.audit.Log(ctx, userID, domain.AuditActionEmailVerified, domain.AuditCategoryAuth, nil)
	return nil
}

// ResendVerification mails a fresh link to an unverified account.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return domain.ErrUserNotFound
	}
	if u.EmailVerified {
		return domain.ErrEmailAlreadyVerified
	}
	return s.sendVerification(ctx, u)
}

// ForgotPassword mails a reset link valid for 30 minutes.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return domain.ErrUserNotFound
	}

	token := uuid.NewString()
	if err := s.kv.Set(ctx, resetPrefix+token, strconv.FormatInt(u.ID, 10), resetTTL); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	link := fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, token)
	body := fmt.Sprintf("Click the link below to reset your password: <a href='%s'>%s</a>", html.EscapeString(link), html.EscapeString(link))
	if err := s.mailer.Send(ctx, u.Email, "Reset your password", body); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	return nil
}

// ResetPassword sets a new password and consumes the token.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	key := resetPrefix + token
	userID, err := s.lookup(ctx, key)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.SetPasswordHash(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.kv.Del(ctx, key); err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	s.audit.Log(ctx, userID, domain.AuditActionPasswordReset, domain.AuditCategoryAuth, nil)
	return nil
}

func (s *AuthService) sendVerification(ctx context.Context, u *domain.User) error {
	token := uuid.NewString()
	if err := s.kv.Set(ctx, verifyPrefix+token, strconv.FormatInt(u.ID, 10), verifyTTL); err != nil {
		return fmt.Errorf("store verify token: %w", err)
	}
	link := fmt.Sprintf("%s/verify-email?token=%s", s.frontendURL, token)
	body := fmt.Sprintf("Click the link below to verify your email: <a href='%s'>%s</a>", html.EscapeString(link), html.EscapeString(link))
	if err := s.mailer.Send(ctx, u.Email, "Verify your email", body); err != nil {
		return fmt.Errorf("send verification mail: %w", err)
	}
	return nil
}

func (s *AuthService) consume(ctx context.Context, key string) (int64, error) {
	userID, err := s.lookup(ctx, key)
	if err != nil {
		return 0, err
	}
	if err := s.kv.Del(ctx, key); err != nil {
		return 0, fmt.Errorf("consume token: %w", err)
	}
	return userID, nil
}

func (s *AuthService) lookup(ctx context.Context, key string) (int64, error) {
	v, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("token lookup: %w", err)
	}
	if !ok {
		return 0, domain.ErrVerificationTokenInvalid
	}
	userID, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, domain.ErrVerificationTokenInvalid
	}
	return userID, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
