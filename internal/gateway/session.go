package gateway

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-engine/internal/models"
	"chat-engine/internal/observability"
	"chat-engine/internal/repositories"
	"chat-engine/internal/rooms"
	"chat-engine/internal/router"
)

const (
	// writeWait bounds a single websocket write.
	writeWait = 10 * time.Second
	// defaultHeartbeat is the idle window before a silent connection is
	// dropped.
	defaultHeartbeat = 60 * time.Second
	// defaultSendBuffer is the per-subscriber fan-out queue depth.
	defaultSendBuffer = 64
)

// sessionDeps groups what a live session needs from the rest of the
// engine.
type sessionDeps struct {
	rt            *router.Router
	directory     registrar
	service       sender
	tracker       reader
	conversations repositories.ConversationRepository
}

type registrar interface {
	Register(ctx context.Context, username, connID string, closeConn func()) error
	Deregister(ctx context.Context, connID string) error
}

type sender interface {
	SendMessage(ctx context.Context, sender string, conversationID *int64, content string) (models.Message, error)
}

type reader interface {
	ReadMessages(ctx context.Context, conversationID int64, reader string) ([]int64, error)
}

// session owns the lifecycle of one authenticated connection: it holds
// the public subscription plus at most one private conversation
// subscription, pumps fanned-out envelopes to the wire and dispatches
// inbound actions.
type session struct {
	deps      sessionDeps
	info      ConnInfo
	conn      *websocket.Conn
	sub       *router.Subscriber
	heartbeat time.Duration

	// Topic of the private conversation currently held; mutated only by
	// the read loop.
	privateTopic string

	closeOnce sync.Once
	onClose   func(reason string)
}

func newSession(deps sessionDeps, conn *websocket.Conn, info ConnInfo, heartbeat time.Duration, buffer int, onClose func(reason string)) *session {
	s := &session{
		deps:      deps,
		info:      info,
		conn:      conn,
		heartbeat: heartbeat,
		onClose:   onClose,
	}
	s.sub = router.NewSubscriber(info.ConnID, buffer, func(err error) {
		s.teardown(err.Error())
	})
	return s
}

// start subscribes the connection to the public topic and launches the
// read and write pumps.
func (s *session) start() {
	s.deps.rt.Subscribe(router.PublicTopic, s.sub)
	go s.writePump()
	go s.readLoop()
}

// teardown runs exactly once, in any goroutine: it detaches the
// subscriber, drops every subscription, clears presence and closes the
// socket. In-flight appends and read batches are single statements, so a
// disconnect here never leaves partial state behind.
func (s *session) teardown(reason string) {
	s.closeOnce.Do(func() {
		s.sub.Stop()
		s.deps.rt.UnsubscribeAll(s.info.ConnID)
		if err := s.deps.directory.Deregister(context.Background(), s.info.ConnID); err != nil {
			log.Printf("session %s: deregister: %v", s.info.ConnID, err)
		}
		s.conn.Close()
		if s.onClose != nil {
			s.onClose(reason)
		}
	})
}

// forceClose is handed to the directory so a newer login of the same
// username can displace this connection.
func (s *session) forceClose() {
	s.teardown("displaced by newer login")
}

func (s *session) readLoop() {
	defer s.teardown("")
	s.conn.SetReadDeadline(time.Now().Add(s.heartbeat))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.heartbeat))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(s.heartbeat))
		s.dispatch(context.Background(), raw)
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(s.heartbeat * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case env := <-s.sub.Events():
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(env); err != nil {
				s.teardown(err.Error())
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.teardown(err.Error())
				return
			}
		case <-s.sub.Done():
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}

// dispatch decodes one frame and applies it. A rejected action answers a
// typed error envelope to this connection only; it never disturbs other
// sessions or stored state.
func (s *session) dispatch(ctx context.Context, raw []byte) {
	action, err := decodeAction(raw)
	if err != nil {
		s.sendErrorText(err.Error())
		return
	}

	switch action.Action {
	case ActionAddUser:
		err = s.deps.directory.Register(ctx, s.info.Username, s.info.ConnID, s.forceClose)
	case ActionSubscribe:
		err = s.subscribeConversation(ctx, *action.ConversationID)
	case ActionUnsubscribe:
		s.dropPrivateTopic()
	case ActionSendMessage:
		_, err = s.deps.service.SendMessage(ctx, s.info.Username, action.ConversationID, action.Content)
	case ActionReadMessages:
		_, err = s.deps.tracker.ReadMessages(ctx, *action.ConversationID, s.info.Username)
	}
	if err != nil {
		s.sendError(err)
	}
}

var errNotParticipant = errors.New("not a participant of this conversation")

// subscribeConversation attaches the session to a conversation topic. A
// connection holds at most one private subscription: picking a new
// conversation replaces the previous one.
func (s *session) subscribeConversation(ctx context.Context, conversationID int64) error {
	conv, err := s.deps.conversations.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.Kind == models.KindPrivate && !s.isParticipant(conv) {
		return errNotParticipant
	}

	topic := router.TopicFor(conversationID)
	if topic == router.PublicTopic || topic == s.privateTopic {
		return nil
	}
	s.dropPrivateTopic()
	s.deps.rt.Subscribe(topic, s.sub)
	s.privateTopic = topic
	return nil
}

func (s *session) isParticipant(conv models.Conversation) bool {
	return (conv.UserA != nil && *conv.UserA == s.info.Username) ||
		(conv.UserB != nil && *conv.UserB == s.info.Username)
}

func (s *session) dropPrivateTopic() {
	if s.privateTopic != "" {
		s.deps.rt.Unsubscribe(s.privateTopic, s.info.ConnID)
		s.privateTopic = ""
	}
}

func (s *session) sendError(err error) {
	s.sendErrorText(publicError(err))
}

func (s *session) sendErrorText(text string) {
	s.sub.Notify(models.Envelope{
		Type:      models.EventError,
		Error:     text,
		Timestamp: time.Now().UTC(),
	})
}

// publicError maps internal failures to the boundary taxonomy without
// leaking storage details.
func publicError(err error) string {
	switch {
	case errors.Is(err, ErrEmptyContent):
		return "message content is empty"
	case errors.Is(err, repositories.ErrConversationNotFound):
		return "unknown conversation"
	case errors.Is(err, rooms.ErrSelfConversation):
		return "cannot open a conversation with yourself"
	case errors.Is(err, errNotParticipant):
		return err.Error()
	default:
		log.Printf("session action failed: %v", err)
		return "internal error"
	}
}
