package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-engine/internal/repositories"
)

// UsersHandler serves the user directory endpoints.
type UsersHandler struct {
	users repositories.UserRepository
}

// NewUsersHandler builds a UsersHandler.
func NewUsersHandler(users repositories.UserRepository) *UsersHandler {
	return &UsersHandler{users: users}
}

// ListUsers returns every known user with presence state.
func (h *UsersHandler) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}
