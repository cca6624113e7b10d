package handlers

import (
	"net/http"

	"storyshelf/internal/domain"
	"storyshelf/internal/service"

	"github.com/gin-gonic/gin"
)

// CoinPacks lists active packs, optionally for one platform.
func (h *Handler) CoinPacks(c *gin.Context) {
	var platform domain.Platform
	if p := c.Query("platform"); p != "" {
		var err error
		if platform, err = domain.ParsePlatform(p); err != nil {
			writeError(c, err)
			return
		}
	}
	packs, err := h.Queries.CoinPacks(c.Request.Context(), platform)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": packs})
}

type verifyReceiptRequest struct {
	Platform  string `json:"platform" binding:"required"`
	ProductID string `json:"productId" binding:"required"`
	Receipt   string `json:"receipt"`
	// PurchaseToken is accepted as an alias of Receipt for Google clients.
	PurchaseToken string `json:"purchaseToken"`
}

// VerifyReceipt credits coins for a store receipt. A receipt already credited
// answers 200 with duplicate=true and the current balance.
func (h *Handler) VerifyReceipt(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req verifyReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "platform and productId are required")
		return
	}
	platform, err := domain.ParsePlatform(req.Platform)
	if err != nil {
		writeError(c, err)
		return
	}
	receipt := req.Receipt
	if receipt == "" {
		receipt = req.PurchaseToken
	}
	if receipt == "" {
		badRequest(c, "receipt is required")
		return
	}

	res, err := h.IAP.SubmitReceipt(c.Request.Context(), userID, platform, req.ProductID, receipt)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"duplicate":     res.Outcome == service.OutcomeDuplicate,
		"outcome":       res.Outcome.String(),
		"transactionId": res.Receipt.TransactionID,
		"coinsGranted":  res.CoinsGranted,
		"balance":       res.Balance,
	})
}

func (h *Handler) MyReceipts(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	items, err := h.Queries.Receipts(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) MyBalance(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	balance, err := h.Queries.Balance(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func (h *Handler) MyLedger(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	res, err := h.Queries.Ledger(c.Request.Context(), userID, pageQuery(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
