package models

import "time"

// Status is the delivery lifecycle of a chat message. It only ever moves
// forward: SENT -> DELIVERED -> READ.
type Status string

const (
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusRead      Status = "READ"
)

var statusRank = map[Status]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusRead:      2,
}

// CanAdvanceTo reports whether moving to next keeps the lifecycle
// monotonic. A READ message never regresses.
func (s Status) CanAdvanceTo(next Status) bool {
	return statusRank[next] > statusRank[s]
}

// MessageKind distinguishes chat payloads from the presence markers the
// public history keeps for joins and leaves.
type MessageKind string

const (
	MessageChat  MessageKind = "CHAT"
	MessageJoin  MessageKind = "JOIN"
	MessageLeave MessageKind = "LEAVE"
)

// Message is one entry of a conversation's append-only log. Seq is the
// per-conversation sequence number assigned at append time; it is gapless
// and strictly increasing, and it, not CreatedAt, defines ordering.
type Message struct {
	ID             int64       `db:"id" json:"id"`
	ConversationID int64       `db:"conversation_id" json:"conversationId"`
	Seq            int64       `db:"seq" json:"seq"`
	SenderUsername string      `db:"sender_username" json:"senderUsername"`
	Content        string      `db:"content" json:"content"`
	Kind           MessageKind `db:"kind" json:"kind"`
	Status         Status      `db:"status" json:"status"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
}
