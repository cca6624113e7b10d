package handlers

import (
	"net/http"
	"strings"

	"storyshelf/internal/service"

	"github.com/gin-gonic/gin"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type coinPurchaseRequest struct {
	StoryListID    int64  `json:"storyListId" binding:"required,gt=0"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// CoinPurchase spends coins on a catalog item. The idempotency key comes from
// the Idempotency-Key header, falling back to the body.
func (h *Handler) CoinPurchase(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req coinPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "storyListId is required")
		return
	}
	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if key == "" {
		key = strings.TrimSpace(req.IdempotencyKey)
	}

	res, err := h.Purchases.Purchase(c.Request.Context(), userID, req.StoryListID, key)
	if err != nil {
		writeError(c, err)
		return
	}

	switch res.Outcome {
	case service.OutcomeAlreadyOwned:
		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"outcome":     res.Outcome.String(),
			"message":     "already owned",
			"storyListId": res.StoryListID,
			"balance":     res.Balance,
		})
	case service.OutcomeDuplicate:
		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"outcome":     res.Outcome.String(),
			"message":     "order already processed",
			"orderId":     res.Order.ID,
			"storyListId": res.StoryListID,
			"priceCoins":  res.PriceCoins,
			"balance":     res.Balance,
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"outcome":     res.Outcome.String(),
			"orderId":     res.Order.ID,
			"storyListId": res.StoryListID,
			"priceCoins":  res.PriceCoins,
			"balance":     res.Balance,
		})
	}
}
