package handlers

import (
	"errors"
	"net/http"

	"storyshelf/internal/domain"
	"storyshelf/internal/logger"

	"github.com/gin-gonic/gin"
)

type errorStatus struct {
	err    error
	status int
}

// errorTable maps business failures to HTTP statuses. The sentinel's text is
// what the client sees; wrapped causes stay in the log.
var errorTable = []errorStatus{
	{domain.ErrProductNotFound, http.StatusBadRequest},
	{domain.ErrIdempotencyKeyRequired, http.StatusBadRequest},
	{domain.ErrUnsupportedPlatform, http.StatusBadRequest},
	{domain.ErrUnsupportedProvider, http.StatusBadRequest},
	{domain.ErrExternalVerificationFailed, http.StatusBadRequest},
	{domain.ErrInvalidAmount, http.StatusBadRequest},
	{domain.ErrTokenRevoked, http.StatusUnauthorized},
	{domain.ErrTokenExpired, http.StatusUnauthorized},
	{domain.ErrTokenInvalid, http.StatusUnauthorized},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized},
	{domain.ErrEmailNotVerified, http.StatusUnauthorized},
	{domain.ErrVerificationTokenInvalid, http.StatusUnauthorized},
	{domain.ErrIdentityVerification, http.StatusUnauthorized},
	{domain.ErrInsufficientBalance, http.StatusForbidden},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrUserNotFound, http.StatusNotFound},
	{domain.ErrEmailTaken, http.StatusConflict},
	{domain.ErrEmailAlreadyVerified, http.StatusConflict},
}

func statusFor(err error) (int, string) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.status, e.err.Error()
		}
	}
	return http.StatusInternalServerError, "internal error"
}

// writeError renders err as {"error": ...}. Unmapped errors are logged and
// reported as 500.
func writeError(c *gin.Context, err error) {
	status, msg := statusFor(err)
	log := logger.L(c.Request.Context())
	if status == http.StatusInternalServerError {
		log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	} else {
		log.Debug("request rejected", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
