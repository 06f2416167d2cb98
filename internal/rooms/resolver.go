// Package rooms resolves the canonical private conversation between two
// users, creating it on first contact.
package rooms

import (
	"context"
	"errors"

	"chat-engine/internal/locks"
	"chat-engine/internal/models"
	"chat-engine/internal/repositories"
)

// ErrSelfConversation rejects resolving a conversation of a user with
// themselves.
var ErrSelfConversation = errors.New("cannot open a conversation with yourself")

// Resolver computes private conversation identities. ResolvePrivate is
// deterministic and idempotent over unordered pairs.
type Resolver struct {
	conversations repositories.ConversationRepository
	pairs         *locks.Keyed
}

// NewResolver constructs a Resolver.
func NewResolver(conversations repositories.ConversationRepository) *Resolver {
	return &Resolver{conversations: conversations, pairs: locks.NewKeyed()}
}

// ResolvePrivate returns the private conversation for the unordered pair
// {userA, userB}, creating it if it does not exist yet. Calls with the
// arguments swapped return the same conversation; concurrent first-time
// calls for one pair are serialized on the normalized pair key, so at
// most one conversation is ever created.
func (r *Resolver) ResolvePrivate(ctx context.Context, userA, userB string) (models.Conversation, error) {
	if userA == userB {
		return models.Conversation{}, ErrSelfConversation
	}
	if userA > userB {
		userA, userB = userB, userA
	}

	unlock := r.pairs.Lock(userA + "\x00" + userB)
	defer unlock()

	return r.conversations.GetOrCreatePrivate(ctx, userA, userB)
}
