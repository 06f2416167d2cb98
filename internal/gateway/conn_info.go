package gateway

import "time"

// ConnInfo carries the identity and transport metadata of one session,
// attached to lifecycle events.
type ConnInfo struct {
	ConnID      string
	Username    string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
