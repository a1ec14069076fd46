package websocket

import "github.com/shopcore/admin-guard/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is the only message a stream client sends.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventReady         Event = "ready"
	EventError         Event = "error"
	EventPong          Event = "pong"
	EventSecurityEvent Event = "security_event"
)

// ReadyResponse is sent once the subscription is live.
type ReadyResponse struct {
	Event     Event  `json:"event"`
	AccountID string `json:"account_id"`
}

// SecurityEventResponse carries one event published on the security bus.
type SecurityEventResponse struct {
	Event Event               `json:"event"`
	Data  model.SecurityEvent `json:"data"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
