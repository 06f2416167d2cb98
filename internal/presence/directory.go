// Package presence is the identity directory: it tracks which users are
// online through which connection and owns their online/offline
// transitions.
package presence

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"chat-engine/internal/locks"
	"chat-engine/internal/models"
	"chat-engine/internal/observability"
	"chat-engine/internal/repositories"
	"chat-engine/internal/router"
)

// Broadcaster is the slice of the topic router the directory needs.
type Broadcaster interface {
	Publish(topic string, env models.Envelope) []string
}

type connEntry struct {
	username string
	closer   func()
}

// Directory maps usernames to their live connection and persists
// presence state. Transitions for one username are serialized by a
// per-username lock; every online/offline transition emits exactly one
// JOIN or LEAVE to the public topic and appends the matching marker to
// the public history.
//
// Duplicate-login policy: last connection wins. Registering a username
// that is already online force-closes the prior connection and emits no
// JOIN, since the user never went offline.
type Directory struct {
	users       repositories.UserRepository
	messages    repositories.MessageRepository
	broadcaster Broadcaster

	perUser *locks.Keyed

	mu     sync.RWMutex
	byUser map[string]string
	byConn map[string]connEntry
}

// NewDirectory constructs an empty directory.
func NewDirectory(users repositories.UserRepository, messages repositories.MessageRepository, broadcaster Broadcaster) *Directory {
	return &Directory{
		users:       users,
		messages:    messages,
		broadcaster: broadcaster,
		perUser:     locks.NewKeyed(),
		byUser:      make(map[string]string),
		byConn:      make(map[string]connEntry),
	}
}

// Register binds the connection to the username and brings the user
// online. Idempotent for a connection that is already registered.
// closeConn is invoked if this connection is later displaced by a newer
// login of the same username.
func (d *Directory) Register(ctx context.Context, username, connID string, closeConn func()) error {
	unlock := d.perUser.Lock(username)
	defer unlock()

	d.mu.Lock()
	if entry, ok := d.byConn[connID]; ok && entry.username == username {
		d.mu.Unlock()
		return nil
	}
	prior, wasOnline := d.byUser[username]
	d.byUser[username] = connID
	d.byConn[connID] = connEntry{username: username, closer: closeConn}
	var displaced func()
	if wasOnline {
		displaced = d.byConn[prior].closer
		delete(d.byConn, prior)
	}
	d.mu.Unlock()

	if wasOnline {
		if displaced != nil {
			displaced()
		}
		return nil
	}

	if _, err := d.users.GetOrCreate(ctx, username); err != nil {
		return fmt.Errorf("create user %q: %w", username, err)
	}
	if err := d.users.SetOnline(ctx, username); err != nil {
		return fmt.Errorf("set %q online: %w", username, err)
	}
	d.announce(ctx, models.EventJoin, models.MessageJoin, username)
	observability.IncPresenceTransition("join")
	return nil
}

// Deregister drops the connection. The bound user goes offline, with
// lastSeen set, only when this connection still owns the username: a
// connection displaced by a newer login leaves presence untouched.
// Duplicate deregisters emit nothing.
func (d *Directory) Deregister(ctx context.Context, connID string) error {
	d.mu.RLock()
	entry, ok := d.byConn[connID]
	d.mu.RUnlock()
	if !ok {
		return nil
	}
	username := entry.username

	unlock := d.perUser.Lock(username)
	defer unlock()

	d.mu.Lock()
	entry, ok = d.byConn[connID]
	if !ok {
		d.mu.Unlock()
		return nil
	}
	delete(d.byConn, connID)
	owns := d.byUser[username] == connID
	if owns {
		delete(d.byUser, username)
	}
	d.mu.Unlock()

	if !owns {
		return nil
	}

	if err := d.users.SetOffline(ctx, username, time.Now().UTC()); err != nil {
		return fmt.Errorf("set %q offline: %w", username, err)
	}
	d.announce(ctx, models.EventLeave, models.MessageLeave, username)
	observability.IncPresenceTransition("leave")
	return nil
}

// IsOnline reports whether the username currently has a live connection.
func (d *Directory) IsOnline(username string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.byUser[username]
	return ok
}

// ConnectionFor returns the connection id currently bound to the
// username.
func (d *Directory) ConnectionFor(username string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	connID, ok := d.byUser[username]
	return connID, ok
}

// LastSeen returns the persisted last-seen timestamp, nil if the user
// has never gone offline.
func (d *Directory) LastSeen(ctx context.Context, username string) (*time.Time, error) {
	user, err := d.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return user.LastSeen, nil
}

// announce persists the presence marker in the public history and fans
// the matching event out to the public topic. Marker persistence is best
// effort: a failed append must not suppress the live event.
func (d *Directory) announce(ctx context.Context, event models.EventType, marker models.MessageKind, username string) {
	if _, err := d.messages.Append(ctx, models.PublicConversationID, username, "", marker); err != nil {
		log.Printf("presence: append %s marker for %s: %v", marker, username, err)
	} else {
		observability.IncMessageAppended(string(marker))
	}
	d.broadcaster.Publish(router.PublicTopic, models.PresenceEnvelope(event, username, time.Now().UTC()))
}
