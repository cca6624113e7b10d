package handlers

import (
	"net/http"
	"strconv"
	"time"

	"storyshelf/internal/domain"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Me(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	u, err := h.Users.Profile(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// updateProfileRequest uses pointers so absent fields stay unchanged.
// Role is not a field here; clients can never raise their own level.
type updateProfileRequest struct {
	Name      *string `json:"name"`
	BirthDate *string `json:"birthDate"`
	Gender    *int    `json:"gender"`
}

func (h *Handler) UpdateMe(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "bad request")
		return
	}

	upd := domain.ProfileUpdate{Name: req.Name, Gender: req.Gender}
	if req.BirthDate != nil {
		t, err := time.Parse(time.DateOnly, *req.BirthDate)
		if err != nil {
			badRequest(c, "birthDate must be YYYY-MM-DD")
			return
		}
		upd.BirthDate = &t
	}

	u, err := h.Users.UpdateProfile(c.Request.Context(), userID, upd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) DeleteMe(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	h.deleteAccount(c, userID, userID)
}

// DeleteUser lets an admin remove another account.
func (h *Handler) DeleteUser(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	target, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || target <= 0 {
		badRequest(c, "invalid user id")
		return
	}
	h.deleteAccount(c, userID, target)
}

func (h *Handler) deleteAccount(c *gin.Context, requester, target int64) {
	if err := h.Users.DeleteAccount(c.Request.Context(), requester, target); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "account deleted"})
}
