package gateway

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"chat-engine/internal/locks"
	"chat-engine/internal/models"
	"chat-engine/internal/observability"
	"chat-engine/internal/repositories"
	"chat-engine/internal/router"
)

// ErrEmptyContent rejects blank message bodies.
var ErrEmptyContent = errors.New("message content is empty")

// presenceView is the slice of the identity directory the send path
// needs to decide DELIVERED.
type presenceView interface {
	ConnectionFor(username string) (string, bool)
}

// statusTracker advances delivery status after a live fan-out.
type statusTracker interface {
	MarkDelivered(ctx context.Context, messageID int64) error
}

// ChatService is the send pipeline: append to the store, fan out through
// the router, advance delivery status for recipients that were reached
// live.
type ChatService struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	rt            *router.Router
	directory     presenceView
	tracker       statusTracker
	// Serializes append+publish per conversation so fan-out order equals
	// append order for subscribers watching continuously.
	sendLocks *locks.Keyed
}

// NewChatService constructs a ChatService.
func NewChatService(conversations repositories.ConversationRepository, messages repositories.MessageRepository, rt *router.Router, directory presenceView, tracker statusTracker) *ChatService {
	return &ChatService{
		conversations: conversations,
		messages:      messages,
		rt:            rt,
		directory:     directory,
		tracker:       tracker,
		sendLocks:     locks.NewKeyed(),
	}
}

// SendMessage appends the message, fans it out to the conversation topic
// and marks it DELIVERED when the recipient held a live subscription at
// publish time. A nil conversation id addresses the public conversation.
// Fan-out failures never fail the send: the message is already stored.
func (s *ChatService) SendMessage(ctx context.Context, sender string, conversationID *int64, content string) (models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return models.Message{}, ErrEmptyContent
	}

	convID := models.PublicConversationID
	if conversationID != nil {
		convID = *conversationID
	}
	conv, err := s.conversations.Get(ctx, convID)
	if err != nil {
		return models.Message{}, err
	}

	topic := router.TopicFor(convID)
	unlock := s.sendLocks.Lock(strconv.FormatInt(convID, 10))
	msg, err := s.messages.Append(ctx, convID, sender, content, models.MessageChat)
	if err != nil {
		unlock()
		return models.Message{}, err
	}
	delivered := s.rt.Publish(topic, models.ChatEnvelope(msg))
	unlock()

	observability.IncMessageAppended(string(models.MessageChat))
	if s.reachedRecipient(conv, sender, delivered) {
		if err := s.tracker.MarkDelivered(ctx, msg.ID); err == nil {
			msg.Status = models.StatusDelivered
		}
	}
	return msg, nil
}

// reachedRecipient decides whether the fan-out counts as a delivery. For
// a private conversation that means the peer's connection accepted the
// envelope; for the broadcast conversation, any connection other than
// the sender's.
func (s *ChatService) reachedRecipient(conv models.Conversation, sender string, delivered []string) bool {
	if conv.Kind == models.KindPrivate {
		peerConn, online := s.directory.ConnectionFor(conv.Peer(sender))
		if !online {
			return false
		}
		for _, connID := range delivered {
			if connID == peerConn {
				return true
			}
		}
		return false
	}

	senderConn, _ := s.directory.ConnectionFor(sender)
	for _, connID := range delivered {
		if connID != senderConn {
			return true
		}
	}
	return false
}
