// Package delivery advances messages through their SENT -> DELIVERED ->
// READ lifecycle and emits the batched status-change notifications.
package delivery

import (
	"context"
	"fmt"

	"chat-engine/internal/models"
	"chat-engine/internal/observability"
	"chat-engine/internal/repositories"
	"chat-engine/internal/router"
)

// Broadcaster is the slice of the topic router the tracker needs.
type Broadcaster interface {
	Publish(topic string, env models.Envelope) []string
}

// Tracker owns message status transitions. All transitions are forward
// only; the repository guards the lifecycle with status predicates, so a
// stale MarkDelivered after a read is a no-op.
type Tracker struct {
	messages    repositories.MessageRepository
	broadcaster Broadcaster
}

// NewTracker constructs a Tracker.
func NewTracker(messages repositories.MessageRepository, broadcaster Broadcaster) *Tracker {
	return &Tracker{messages: messages, broadcaster: broadcaster}
}

// MarkDelivered records that the message reached a live subscription of
// its recipient. Best effort and unacknowledged: invoked right after a
// successful fan-out, never by history fetches, so a message read by a
// reconnecting recipient skips DELIVERED entirely.
func (t *Tracker) MarkDelivered(ctx context.Context, messageID int64) error {
	transitioned, err := t.messages.MarkDelivered(ctx, messageID)
	if err != nil {
		return fmt.Errorf("mark message %d delivered: %w", messageID, err)
	}
	if transitioned {
		observability.IncStatusTransition(string(models.StatusDelivered))
	}
	return nil
}

// ReadMessages marks every chat message in the conversation not sent by
// reader and not yet READ as READ, then emits at most one batched
// STATUS_UPDATE to the conversation topic. A call that finds nothing
// unread emits nothing. Returns the affected message ids.
func (t *Tracker) ReadMessages(ctx context.Context, conversationID int64, reader string) ([]int64, error) {
	ids, err := t.messages.MarkRead(ctx, conversationID, reader)
	if err != nil {
		return nil, fmt.Errorf("mark conversation %d read by %q: %w", conversationID, reader, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	for range ids {
		observability.IncStatusTransition(string(models.StatusRead))
	}
	t.broadcaster.Publish(router.TopicFor(conversationID), models.StatusUpdateEnvelope(conversationID, ids, models.StatusRead))
	return ids, nil
}
