package domain

import "errors"

// Ledger and workflow failures.
var (
	ErrInsufficientBalance        = errors.New("insufficient balance")
	ErrDuplicateOperation         = errors.New("duplicate operation")
	ErrProductNotFound            = errors.New("product not found")
	ErrAlreadyOwned               = errors.New("already owned")
	ErrInvalidAmount              = errors.New("invalid amount")
	ErrExternalVerificationFailed = errors.New("external verification failed")
	ErrUnsupportedPlatform        = errors.New("unsupported platform")
	ErrIdempotencyKeyRequired     = errors.New("idempotency key required")
)

// Authentication and account failures.
var (
	ErrTokenRevoked             = errors.New("token revoked")
	ErrTokenExpired             = errors.New("token expired")
	ErrTokenInvalid             = errors.New("invalid token")
	ErrUserNotFound             = errors.New("user not found")
	ErrEmailTaken               = errors.New("email already registered")
	ErrInvalidCredentials       = errors.New("invalid email or password")
	ErrEmailNotVerified         = errors.New("email not verified")
	ErrEmailAlreadyVerified     = errors.New("email already verified")
	ErrVerificationTokenInvalid = errors.New("verification link expired or invalid")
	ErrForbidden                = errors.New("forbidden")
	ErrUnsupportedProvider      = errors.New("unsupported provider")
	ErrIdentityVerification     = errors.New("identity verification failed")
)
