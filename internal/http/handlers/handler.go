package handlers

import (
	"strconv"

	"storyshelf/internal/http/middleware"
	"storyshelf/internal/service"

	"github.com/gin-gonic/gin"
)

// Handler serves the client-facing API.
type Handler struct {
	Auth      *service.AuthService
	Users     *service.UserService
	IAP       *service.IAPService
	Purchases *service.PurchaseService
	Queries   *service.QueryService
	Audit     *service.AuditService
}

func NewHandler(auth *service.AuthService, users *service.UserService, iap *service.IAPService, purchases *service.PurchaseService, queries *service.QueryService, audit *service.AuditService) *Handler {
	return &Handler{
		Auth:      auth,
		Users:     users,
		IAP:       iap,
		Purchases: purchases,
		Queries:   queries,
		Audit:     audit,
	}
}

// getUserID извлекает user_id из контекста Gin
func getUserID(c *gin.Context) (int64, bool) {
	return middleware.UserID(c)
}

// requestMeta captures the caller address for the audit log.
func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// pageQuery reads ?page=&limit=. Bad values fall back to defaults.
func pageQuery(c *gin.Context) service.Page {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return service.NewPage(page, limit)
}
