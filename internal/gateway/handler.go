package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-engine/internal/auth"
	"chat-engine/internal/observability"
	"chat-engine/internal/repositories"
	"chat-engine/internal/router"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHandler authenticates and upgrades client connections and
// hands them to sessions.
type WebSocketHandler struct {
	deps             sessionDeps
	verifier         auth.Verifier
	heartbeat        time.Duration
	handshakeTimeout time.Duration
	sendBuffer       int
}

// Config tunes the gateway; zero values fall back to defaults.
type Config struct {
	Heartbeat        time.Duration
	HandshakeTimeout time.Duration
	SendBuffer       int
}

// NewWebSocketHandler constructs the gateway handler.
func NewWebSocketHandler(deps Deps, verifier auth.Verifier, cfg Config) *WebSocketHandler {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultHeartbeat
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	return &WebSocketHandler{
		deps: sessionDeps{
			rt:            deps.Router,
			directory:     deps.Directory,
			service:       deps.Service,
			tracker:       deps.Tracker,
			conversations: deps.Conversations,
		},
		verifier:         verifier,
		heartbeat:        cfg.Heartbeat,
		handshakeTimeout: cfg.HandshakeTimeout,
		sendBuffer:       cfg.SendBuffer,
	}
}

// Handle upgrades the connection and starts its session. The token is
// verified before the upgrade; an unauthenticated connection is refused
// with no state mutated.
func (h *WebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-engine/gateway").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	verifyCtx, cancel := context.WithTimeout(ctx, h.handshakeTimeout)
	defer cancel()
	username, err := h.verifier.Verify(verifyCtx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      uuid.NewString(),
		Username:    username,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	publishSessionEvent(ctx, "ws_connect", info, 0, "")

	sess := newSession(h.deps, conn, info, h.heartbeat, h.sendBuffer, func(reason string) {
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		publishSessionEvent(context.Background(), "ws_disconnect", info, time.Since(info.ConnectedAt), reason)
	})
	sess.start()
}

// Deps wires the gateway's collaborators from main.
type Deps struct {
	Router        *router.Router
	Directory     registrar
	Service       sender
	Tracker       reader
	Conversations repositories.ConversationRepository
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && (header[:7] == "Bearer " || header[:7] == "bearer ") {
		return header[7:]
	}
	return c.Query("token")
}

func publishSessionEvent(ctx context.Context, name string, info ConnInfo, duration time.Duration, reason string) {
	payload := map[string]interface{}{
		"session": map[string]interface{}{
			"event":       name,
			"conn_id":     info.ConnID,
			"duration_ms": duration.Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"username":  info.Username,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
	_ = observability.PublishEvent(ctx, observability.RoutingSessionEvents, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload:   payload,
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
