package handlers

import (
	"net/http"
	"strconv"

	"storyshelf/internal/domain"

	"github.com/gin-gonic/gin"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AdminCoinLedger pages through one user's ledger. userId is required.
func (h *Handler) AdminCoinLedger(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("userId"), 10, 64)
	if err != nil || userID <= 0 {
		badRequest(c, "userId is required")
		return
	}
	res, err := h.Queries.AdminLedger(c.Request.Context(), userID, pageQuery(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) AdminReceipts(c *gin.Context) {
	res, err := h.Queries.AdminReceipts(c.Request.Context(), pageQuery(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// AdminAuditLogs lists one user's audit trail, newest first.
func (h *Handler) AdminAuditLogs(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("userId"), 10, 64)
	if err != nil || userID <= 0 {
		badRequest(c, "userId is required")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultAuditLimit)))
	if err != nil || limit <= 0 {
		limit = defaultAuditLimit
	}
	limit = min(limit, maxAuditLimit)

	logs, err := h.Audit.GetUserAuditLogs(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if logs == nil {
		logs = []*domain.AuditLog{}
	}
	c.JSON(http.StatusOK, gin.H{"userId": userID, "items": logs})
}
