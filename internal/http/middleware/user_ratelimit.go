package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// ByUser buckets requests by the authenticated user. Requires Auth to run first.
func ByUser(c *gin.Context) (string, bool) {
	userID, ok := UserID(c)
	if !ok {
		return "", false
	}
	return "user:" + strconv.FormatInt(userID, 10), true
}
