package models

import "time"

// ConversationKind discriminates the broadcast channel from two-party chats.
type ConversationKind string

const (
	KindPublic  ConversationKind = "public"
	KindPrivate ConversationKind = "private"
)

// PublicConversationID is the reserved id of the singleton broadcast
// conversation, seeded by migration. Clients address it by omitting the
// conversation id.
const PublicConversationID int64 = 1

// Conversation is either the public channel or a private chat between
// exactly two users. Private participant usernames are stored sorted so
// an unordered pair maps to at most one row.
type Conversation struct {
	ID        int64            `db:"id" json:"id"`
	Kind      ConversationKind `db:"kind" json:"kind"`
	UserA     *string          `db:"user_a" json:"user_a,omitempty"`
	UserB     *string          `db:"user_b" json:"user_b,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// Peer returns the other participant of a private conversation.
func (c Conversation) Peer(username string) string {
	if c.UserA != nil && *c.UserA != username {
		return *c.UserA
	}
	if c.UserB != nil {
		return *c.UserB
	}
	return ""
}
