package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mmynk/qchemaxis/internal/middleware"
	"github.com/mmynk/qchemaxis/internal/models"
)

func (h *Handler) userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(c, "Invalid user ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) adminListUsers(c *gin.Context) {
	users, err := h.admin.ListUsers(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(users), "users": users})
}

func (h *Handler) adminGetUser(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}

	detail, err := h.admin.GetUser(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": detail.User, "stats": detail.Stats})
}

func (h *Handler) adminUserStats(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}

	stats, err := h.admin.UserStats(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "userId": id, "stats": stats})
}

func (h *Handler) adminSystemStats(c *gin.Context) {
	stats, err := h.admin.SystemStats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

func (h *Handler) adminHealth(c *gin.Context) {
	health, err := h.admin.Health(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "health": health})
}

// adminUpdate binds {field: value} and applies update to the user in the path.
func (h *Handler) adminUpdate(field, done string, update func(ctx context.Context, id int64, value string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.userID(c)
		if !ok {
			return
		}

		var body map[string]string
		if err := c.ShouldBindJSON(&body); err != nil {
			h.badRequest(c, "Invalid request body")
			return
		}

		if err := update(c.Request.Context(), id, body[field]); err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": done})
	}
}

func (h *Handler) adminUpdateEmail(c *gin.Context) {
	h.adminUpdate("email", "Email updated successfully", h.admin.UpdateEmail)(c)
}

func (h *Handler) adminUpdateUsername(c *gin.Context) {
	h.adminUpdate("username", "Username updated successfully", h.admin.UpdateUsername)(c)
}

func (h *Handler) adminUpdatePassword(c *gin.Context) {
	h.adminUpdate("password", "Password updated successfully", h.admin.UpdatePassword)(c)
}

func (h *Handler) adminUpdateLevel(c *gin.Context) {
	h.adminUpdate("level", "Level updated successfully", func(ctx context.Context, id int64, value string) error {
		return h.admin.UpdateLevel(ctx, id, models.Level(value))
	})(c)
}

func (h *Handler) adminDeleteUser(c *gin.Context) {
	id, ok := h.userID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.admin.DeleteUser(ctx, middleware.GetUserID(ctx), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User deleted successfully"})
}
