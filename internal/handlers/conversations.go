package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-engine/internal/models"
	"chat-engine/internal/rooms"
)

// conversationResolver is the slice of the room resolver this handler
// needs.
type conversationResolver interface {
	ResolvePrivate(ctx context.Context, userA, userB string) (models.Conversation, error)
}

// userLookup creates participants on first contact, mirroring the lazy
// account creation of the identity directory.
type userLookup interface {
	GetOrCreate(ctx context.Context, username string) (models.User, error)
}

// ConversationsHandler serves conversation resolution.
type ConversationsHandler struct {
	resolver conversationResolver
	users    userLookup
}

// NewConversationsHandler builds a ConversationsHandler.
func NewConversationsHandler(resolver conversationResolver, users userLookup) *ConversationsHandler {
	return &ConversationsHandler{resolver: resolver, users: users}
}

// ResolvePrivate returns the canonical private conversation for the
// unordered pair {user1, user2}, creating it on first contact.
func (h *ConversationsHandler) ResolvePrivate(c *gin.Context) {
	user1 := c.Query("user1")
	user2 := c.Query("user2")
	if user1 == "" || user2 == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user1 and user2 are required"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.users.GetOrCreate(ctx, user1); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve participants"})
		return
	}
	if _, err := h.users.GetOrCreate(ctx, user2); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve participants"})
		return
	}

	conv, err := h.resolver.ResolvePrivate(ctx, user1, user2)
	if err != nil {
		if errors.Is(err, rooms.ErrSelfConversation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open a conversation with yourself"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve conversation"})
		return
	}
	c.JSON(http.StatusOK, conv)
}
