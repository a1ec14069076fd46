package model

import "time"

// SecurityEventType names what a SecurityEvent reports.
type SecurityEventType string

const (
	EventSuspiciousLogin   SecurityEventType = "suspicious_login"
	EventAccountLocked     SecurityEventType = "account_locked"
	EventCoordinatedAttack SecurityEventType = "coordinated_attack"
	EventAccountSuspended  SecurityEventType = "account_suspended"
)

// SecurityEvent is broadcast to principals watching the live security stream.
type SecurityEvent struct {
	Type       SecurityEventType `json:"type"`
	AccountID  string            `json:"account_id,omitempty"`
	Email      string            `json:"email,omitempty"`
	IP         string            `json:"ip,omitempty"`
	Location   string            `json:"location,omitempty"`
	Findings   []string          `json:"findings,omitempty"`
	AccountIDs []string          `json:"account_ids,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
