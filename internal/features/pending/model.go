package pending

import (
	"time"

	"records-console/internal/gateway"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusResolved  Status = "resolved"
	StatusAbandoned Status = "abandoned"
)

// PendingAction records a call or meeting that could not be written after its lead
// was saved. It stays pending until a retry succeeds or the attempts run out.
// Only retryable records of live sessions are picked up by the scheduler.
type PendingAction struct {
	ID         primitive.ObjectID    `bson:"_id,omitempty" json:"id"`
	SessionID  string                `bson:"session_id" json:"session_id"`
	UserID     string                `bson:"user_id" json:"user_id"`
	RequestID  string                `bson:"request_id" json:"request_id"`
	LeadID     int64                 `bson:"lead_id" json:"lead_id"`
	Kind       gateway.ActionKind    `bson:"kind" json:"action_type"`
	Payload    gateway.ActionPayload `bson:"payload" json:"payload"`
	LastError  string                `bson:"last_error" json:"last_error"`
	Attempts   int                   `bson:"attempts" json:"attempts"`
	Retryable  bool                  `bson:"retryable" json:"retryable"`
	Status     Status                `bson:"status" json:"status"`
	ActionID   int64                 `bson:"action_id,omitempty" json:"action_id,omitempty"`
	CreatedAt  time.Time             `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time             `bson:"updated_at" json:"updated_at"`
	ResolvedAt *time.Time            `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
}
