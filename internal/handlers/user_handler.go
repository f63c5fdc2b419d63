package handlers

import (
	"net/http"

	"cached-task-api/internal/models"

	"github.com/gin-gonic/gin"
)

// GetAllUsers returns all users (protected), served from the user cache
// GET /api/users
func (h *Handler) GetAllUsers(c *gin.Context) {
	resp, err := h.caches.Users.GetOrCompute(usersKey, h.loadUsers, 0)
	if err != nil {
		h.lookupFailed(c, err, "Users not found", "Failed to fetch users")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": resp,
		"count": len(resp),
	})
}

// loadUsers maps every user to its public view.
func (h *Handler) loadUsers() ([]models.UserResponse, error) {
	var users []models.User
	if err := h.db.Order("username asc").Find(&users).Error; err != nil {
		return nil, err
	}
	resp := make([]models.UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, models.UserResponse{
			ID:       u.ID,
			Username: u.Username,
		})
	}
	return resp, nil
}
