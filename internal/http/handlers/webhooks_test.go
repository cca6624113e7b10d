package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storyshelf/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestStoreWebhookAcknowledges(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/hook", StoreWebhook(domain.PlatformGoogle))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{"message":{"data":"e30="}}`)))

	assert.Equal(t, http.StatusOK, w.Code)
	body := gjson.Parse(w.Body.String())
	assert.True(t, body.Get("success").Bool())
	assert.Equal(t, "GOOGLE", body.Get("platform").String())
	assert.Equal(t, int64(0), body.Get("coinsAdded").Int())
}
