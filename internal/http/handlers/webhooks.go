package handlers

import (
	"io"
	"net/http"

	"storyshelf/internal/domain"
	"storyshelf/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

// StoreWebhook acknowledges server notifications from a store. Notifications
// are logged only; they never touch the ledger.
func StoreWebhook(platform domain.Platform) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
		if err != nil {
			badRequest(c, "unreadable body")
			return
		}

		log := logger.L(c.Request.Context())
		if !gjson.ValidBytes(body) {
			log.Warn("store webhook with invalid json", "platform", platform, "size", len(body))
		} else {
			res := gjson.ParseBytes(body)
			log.Warn("store webhook received",
				"platform", platform,
				"notification_type", firstOf(res, "notificationType", "subscriptionNotification.notificationType", "oneTimeProductNotification.notificationType"),
				"package", res.Get("packageName").String(),
			)
		}

		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"platform":   platform,
			"coinsAdded": 0,
			"message":    "webhook received",
		})
	}
}

func firstOf(res gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := res.Get(p); v.Exists() {
			return v.String()
		}
	}
	return ""
}
