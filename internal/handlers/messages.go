package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-engine/internal/middleware"
	"chat-engine/internal/models"
	"chat-engine/internal/repositories"
)

// MessagesHandler serves message history and the per-peer aggregates the
// client sidebar needs.
type MessagesHandler struct {
	messages repositories.MessageRepository
}

// NewMessagesHandler builds a MessagesHandler.
func NewMessagesHandler(messages repositories.MessageRepository) *MessagesHandler {
	return &MessagesHandler{messages: messages}
}

// GetHistory returns the ordered message log of a conversation; with no
// conversationId it returns the public history.
func (h *MessagesHandler) GetHistory(c *gin.Context) {
	conversationID := models.PublicConversationID
	if raw := c.Query("conversationId"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
			return
		}
		conversationID = parsed
	}

	msgs, err := h.messages.History(c.Request.Context(), conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown conversation"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// GetUnreadCounts maps each peer username to the caller's unread count.
func (h *MessagesHandler) GetUnreadCounts(c *gin.Context) {
	username := c.GetString(middleware.UsernameContextKey)
	counts, err := h.messages.UnreadCounts(c.Request.Context(), username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load unread counts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unreadCounts": counts})
}

// GetLastMessages maps each peer username to the latest message preview.
func (h *MessagesHandler) GetLastMessages(c *gin.Context) {
	username := c.GetString(middleware.UsernameContextKey)
	previews, err := h.messages.LastMessages(c.Request.Context(), username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load last messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lastMessages": previews})
}
