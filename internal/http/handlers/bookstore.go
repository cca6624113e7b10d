package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Bookstore lists active catalog items, newest first.
func (h *Handler) Bookstore(c *gin.Context) {
	items, err := h.Queries.Bookstore(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) MyEntitlements(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	res, err := h.Queries.Entitlements(c.Request.Context(), userID, pageQuery(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
