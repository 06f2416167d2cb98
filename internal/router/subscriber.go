package router

import (
	"sync"

	"chat-engine/internal/models"
)

// Subscriber is one connection's inbox for fanned-out envelopes. The
// owning session drains Events from its write pump; publishes never block
// on a slow reader beyond the buffer.
type Subscriber struct {
	connID   string
	ch       chan models.Envelope
	done     chan struct{}
	stopOnce sync.Once
	failOnce sync.Once
	onFail   func(error)
}

// NewSubscriber builds a subscriber with the given outbound buffer.
// onFail is invoked at most once, asynchronously, when the subscriber is
// treated as failed (buffer exhausted by a persistently blocked reader).
func NewSubscriber(connID string, buffer int, onFail func(error)) *Subscriber {
	return &Subscriber{
		connID: connID,
		ch:     make(chan models.Envelope, buffer),
		done:   make(chan struct{}),
		onFail: onFail,
	}
}

// ConnID returns the owning connection id.
func (s *Subscriber) ConnID() string { return s.connID }

// Events is the stream of envelopes delivered to this subscriber.
func (s *Subscriber) Events() <-chan models.Envelope { return s.ch }

// Stop detaches the subscriber; pending and future deliveries are
// discarded. Safe to call multiple times.
func (s *Subscriber) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Done is closed once the subscriber stopped accepting deliveries.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

func (s *Subscriber) fail(err error) {
	s.failOnce.Do(func() {
		if s.onFail != nil {
			go s.onFail(err)
		}
	})
}

// Notify pushes an envelope directly to this subscriber, bypassing
// topics. Used for connection-scoped events such as error replies.
func (s *Subscriber) Notify(env models.Envelope) bool {
	return s.deliver(env)
}

// deliver attempts a non-blocking handoff. Reports whether the envelope
// was accepted.
func (s *Subscriber) deliver(env models.Envelope) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.ch <- env:
		return true
	case <-s.done:
		return false
	default:
		s.fail(ErrSubscriberStalled)
		return false
	}
}
