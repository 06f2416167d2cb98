package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"chat-engine/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository is the append-only per-conversation message log plus
// the per-message delivery status it carries.
type MessageRepository interface {
	Append(ctx context.Context, conversationID int64, sender string, content string, kind models.MessageKind) (models.Message, error)
	History(ctx context.Context, conversationID int64) ([]models.Message, error)
	Get(ctx context.Context, messageID int64) (models.Message, error)
	MarkDelivered(ctx context.Context, messageID int64) (bool, error)
	MarkRead(ctx context.Context, conversationID int64, reader string) ([]int64, error)
	UnreadCounts(ctx context.Context, username string) (map[string]int64, error)
	LastMessages(ctx context.Context, username string) (map[string]string, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, seq, sender_username, content, kind, status, created_at`

// Append stores a message and assigns the next sequence number for its
// conversation. The transaction-scoped advisory lock on the conversation
// id is the single serialization point: concurrent appends into the same
// conversation produce a gapless total order with no lost writes.
func (r *MessageRepo) Append(ctx context.Context, conversationID int64, sender string, content string, kind models.MessageKind) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, conversationID); err != nil {
		return models.Message{}, fmt.Errorf("acquire conversation lock: %w", err)
	}

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM conversations WHERE id=$1)`, conversationID); err != nil {
		return models.Message{}, err
	}
	if !exists {
		return models.Message{}, ErrConversationNotFound
	}

	var msg models.Message
	err = tx.QueryRowxContext(ctx, `INSERT INTO messages (conversation_id, seq, sender_username, content, kind)
        VALUES ($1, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id=$1), $2, $3, $4)
        RETURNING `+messageColumns, conversationID, sender, content, kind).
		Scan(&msg.ID, &msg.ConversationID, &msg.Seq, &msg.SenderUsername, &msg.Content, &msg.Kind, &msg.Status, &msg.CreatedAt)
	if err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// History returns the full message log of a conversation in sequence
// order.
func (r *MessageRepo) History(ctx context.Context, conversationID int64) ([]models.Message, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM conversations WHERE id=$1)`, conversationID); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrConversationNotFound
	}

	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages WHERE conversation_id=$1 ORDER BY seq ASC`, conversationID)
	return msgs, err
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkDelivered advances a message from SENT to DELIVERED. The status
// predicate keeps the lifecycle monotonic: a READ message is never
// reverted. Reports whether the row actually transitioned.
func (r *MessageRepo) MarkDelivered(ctx context.Context, messageID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET status='DELIVERED' WHERE id=$1 AND status='SENT'`, messageID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

// MarkRead marks every not-yet-read chat message in the conversation that
// was not sent by the reader as READ, returning the affected ids in
// sequence order. The single UPDATE makes the batch atomic: a concurrent
// call sees either none or all of these rows already read.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID int64, reader string) ([]int64, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM conversations WHERE id=$1)`, conversationID); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrConversationNotFound
	}

	rows, err := r.db.QueryxContext(ctx, `UPDATE messages SET status='READ'
        WHERE conversation_id=$1 AND sender_username <> $2 AND kind='CHAT' AND status <> 'READ'
        RETURNING id`, conversationID, reader)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UnreadCounts maps each peer username to the number of their private
// messages to username that are not yet READ.
func (r *MessageRepo) UnreadCounts(ctx context.Context, username string) (map[string]int64, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT m.sender_username, COUNT(*) FROM messages m
        JOIN conversations c ON c.id = m.conversation_id
        WHERE c.kind='private' AND (c.user_a=$1 OR c.user_b=$1)
          AND m.sender_username <> $1 AND m.kind='CHAT' AND m.status <> 'READ'
        GROUP BY m.sender_username`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var sender string
		var count int64
		if err := rows.Scan(&sender, &count); err != nil {
			return nil, err
		}
		counts[sender] = count
	}
	return counts, rows.Err()
}

// LastMessages maps each peer username to the content of the most recent
// chat message in their private conversation with username.
func (r *MessageRepo) LastMessages(ctx context.Context, username string) (map[string]string, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT DISTINCT ON (m.conversation_id) c.user_a, c.user_b, m.content
        FROM messages m
        JOIN conversations c ON c.id = m.conversation_id
        WHERE c.kind='private' AND (c.user_a=$1 OR c.user_b=$1) AND m.kind='CHAT'
        ORDER BY m.conversation_id, m.seq DESC`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	previews := map[string]string{}
	for rows.Next() {
		var userA, userB, content string
		if err := rows.Scan(&userA, &userB, &content); err != nil {
			return nil, err
		}
		peer := userA
		if peer == username {
			peer = userB
		}
		previews[peer] = content
	}
	return previews, rows.Err()
}
