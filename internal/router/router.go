// Package router is the publish/subscribe broker between sessions. It
// maps topic addresses to the connections currently subscribed and fans
// published envelopes out to all of them. There is no replay: history is
// the message store's job.
package router

import (
	"errors"
	"strconv"
	"sync"

	"chat-engine/internal/models"
	"chat-engine/internal/observability"
)

// ErrSubscriberStalled marks a subscriber torn down because its buffer
// stayed full during a publish.
var ErrSubscriberStalled = errors.New("subscriber queue full")

// PublicTopic is the reserved broadcast topic every session joins.
const PublicTopic = "public"

// ConversationTopic returns the topic address of a conversation.
func ConversationTopic(conversationID int64) string {
	return "conversations." + strconv.FormatInt(conversationID, 10)
}

// TopicFor maps a conversation id to its topic address; the reserved
// public conversation is carried on the public topic.
func TopicFor(conversationID int64) string {
	if conversationID == models.PublicConversationID {
		return PublicTopic
	}
	return ConversationTopic(conversationID)
}

// Router maintains the topic subscription tables.
type Router struct {
	mu     sync.RWMutex
	topics map[string]map[string]*Subscriber
	// conn id -> topics it holds, so disconnects drop everything at once.
	byConn map[string]map[string]struct{}
}

// New creates an empty router.
func New() *Router {
	return &Router{
		topics: make(map[string]map[string]*Subscriber),
		byConn: make(map[string]map[string]struct{}),
	}
}

// Subscribe registers the subscriber on a topic. Re-subscribing the same
// connection replaces the previous registration.
func (r *Router) Subscribe(topic string, sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.topics[topic]; !ok {
		r.topics[topic] = make(map[string]*Subscriber)
	}
	r.topics[topic][sub.connID] = sub
	if _, ok := r.byConn[sub.connID]; !ok {
		r.byConn[sub.connID] = make(map[string]struct{})
	}
	r.byConn[sub.connID][topic] = struct{}{}
}

// Unsubscribe removes the connection from a topic.
func (r *Router) Unsubscribe(topic, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(topic, connID)
}

// UnsubscribeAll removes the connection from every topic it holds.
func (r *Router) UnsubscribeAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	topics := make([]string, 0, len(r.byConn[connID]))
	for topic := range r.byConn[connID] {
		topics = append(topics, topic)
	}
	for _, topic := range topics {
		r.removeLocked(topic, connID)
	}
}

func (r *Router) removeLocked(topic, connID string) {
	if subs, ok := r.topics[topic]; ok {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(r.topics, topic)
		}
	}
	if topics, ok := r.byConn[connID]; ok {
		delete(topics, topic)
		if len(topics) == 0 {
			delete(r.byConn, connID)
		}
	}
}

// Publish fans the envelope out to every connection subscribed at this
// instant and returns the conn ids that accepted it. A stalled subscriber
// is failed asynchronously and never blocks delivery to the others.
func (r *Router) Publish(topic string, env models.Envelope) []string {
	r.mu.RLock()
	subs := make([]*Subscriber, 0, len(r.topics[topic]))
	for _, sub := range r.topics[topic] {
		subs = append(subs, sub)
	}
	r.mu.RUnlock()

	delivered := make([]string, 0, len(subs))
	for _, sub := range subs {
		if sub.deliver(env) {
			delivered = append(delivered, sub.connID)
		} else {
			observability.IncFanoutDropped(topic)
		}
	}
	return delivered
}

// Subscribers returns the conn ids currently subscribed to a topic.
func (r *Router) Subscribers(topic string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.topics[topic]))
	for connID := range r.topics[topic] {
		ids = append(ids, connID)
	}
	return ids
}

// Subscribed reports whether the connection currently holds the topic.
func (r *Router) Subscribed(topic, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.topics[topic][connID]
	return ok
}
