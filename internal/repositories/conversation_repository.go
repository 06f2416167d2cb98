package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-engine/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence. Participant
// pairs are expected pre-normalized (userA < userB); normalization and
// pair locking live in the rooms resolver.
type ConversationRepository interface {
	GetOrCreatePrivate(ctx context.Context, userA, userB string) (models.Conversation, error)
	Get(ctx context.Context, conversationID int64) (models.Conversation, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// GetOrCreatePrivate returns the private conversation for the normalized
// pair, creating it on first contact. The unique constraint on
// (user_a, user_b) keeps concurrent first-time calls from creating two
// rows; the loser of the race re-reads the winner's row.
func (r *ConversationRepo) GetOrCreatePrivate(ctx context.Context, userA, userB string) (models.Conversation, error) {
	var conv models.Conversation
	query := `SELECT id, kind, user_a, user_b, created_at FROM conversations WHERE user_a=$1 AND user_b=$2`
	err := r.db.GetContext(ctx, &conv, query, userA, userB)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, err
	}

	err = r.db.QueryRowxContext(ctx, `INSERT INTO conversations (kind, user_a, user_b) VALUES ('private', $1, $2)
        ON CONFLICT (user_a, user_b) DO NOTHING
        RETURNING id, kind, user_a, user_b, created_at`, userA, userB).
		Scan(&conv.ID, &conv.Kind, &conv.UserA, &conv.UserB, &conv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the creation race; the row exists now.
		err = r.db.GetContext(ctx, &conv, query, userA, userB)
	}
	if err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// Get fetches a conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, conversationID int64) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT id, kind, user_a, user_b, created_at FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}
