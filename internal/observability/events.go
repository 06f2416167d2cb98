package observability

// EventEnvelope is the shape of infrastructure events shipped over AMQP:
// session lifecycle, presence transitions and audit entries.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// Routing keys for the engine's event streams.
const (
	RoutingSessionEvents  = "chat_engine.sessions"
	RoutingPresenceEvents = "chat_engine.presence"
)

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
