package models

import "time"

// EventType tags the envelopes fanned out to topic subscribers.
type EventType string

const (
	EventJoin         EventType = "JOIN"
	EventLeave        EventType = "LEAVE"
	EventChat         EventType = "CHAT"
	EventStatusUpdate EventType = "STATUS_UPDATE"
	EventError        EventType = "ERROR"
)

// Envelope is the closed variant pushed through topics. Each event type
// fills only its own fields; consumers switch on Type.
type Envelope struct {
	Type           EventType `json:"type"`
	Sender         string    `json:"sender,omitempty"`
	ConversationID *int64    `json:"conversationId,omitempty"`
	Message        *Message  `json:"message,omitempty"`
	MessageIDs     []int64   `json:"messageIds,omitempty"`
	NewStatus      Status    `json:"newStatus,omitempty"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// ChatEnvelope wraps a stored message for fan-out.
func ChatEnvelope(msg Message) Envelope {
	return Envelope{
		Type:           EventChat,
		Sender:         msg.SenderUsername,
		ConversationID: &msg.ConversationID,
		Message:        &msg,
		Timestamp:      msg.CreatedAt,
	}
}

// PresenceEnvelope builds the JOIN or LEAVE broadcast for a presence
// transition.
func PresenceEnvelope(event EventType, username string, at time.Time) Envelope {
	return Envelope{Type: event, Sender: username, Timestamp: at}
}

// StatusUpdateEnvelope carries one batched status change for a
// conversation.
func StatusUpdateEnvelope(conversationID int64, messageIDs []int64, status Status) Envelope {
	return Envelope{
		Type:           EventStatusUpdate,
		ConversationID: &conversationID,
		MessageIDs:     messageIDs,
		NewStatus:      status,
		Timestamp:      time.Now().UTC(),
	}
}
