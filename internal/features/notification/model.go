package notification

import "time"

type EventType string

const (
	EventPartialFailure EventType = "partial_failure"
	EventActionResolved EventType = "action_resolved"
	EventActionAbandon  EventType = "action_abandoned"
)

// Event is pushed to every websocket connection of a session.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"-"`
	LeadID    int64     `json:"lead_id"`
	PendingID string    `json:"pending_id,omitempty"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	CreatedAt time.Time `json:"created_at"`
}
