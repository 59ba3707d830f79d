package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ContextKey string

const (
	SessionIDKey ContextKey = "session_id"
	ClaimsKey    ContextKey = "user_claims"
)

// Fiber locals populated by the auth middleware.
const (
	SessionLocalsKey = "session"
	MatrixLocalsKey  = "permission_matrix"
)

type AuditAction string

const (
	AuditActionLogin         AuditAction = "LOGIN"
	AuditActionLogout        AuditAction = "LOGOUT"
	AuditActionLeadCreate    AuditAction = "LEAD_CREATE"
	AuditActionLeadUpdate    AuditAction = "LEAD_UPDATE"
	AuditActionActionCreate  AuditAction = "ACTION_CREATE"
	AuditActionPartial       AuditAction = "PARTIAL_FAILURE"
	AuditActionActionRetried AuditAction = "ACTION_RETRIED"
	AuditActionAbandoned     AuditAction = "ACTION_ABANDONED"
)

type Change struct {
	Old interface{} `bson:"old" json:"old"`
	New interface{} `bson:"new" json:"new"`
}

type AuditLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id,omitempty" json:"session_id,omitempty"`
	Action    AuditAction        `bson:"action" json:"action"`
	Module    string             `bson:"module" json:"module"`
	RecordID  string             `bson:"record_id" json:"record_id"`
	ActorID   string             `bson:"actor_id" json:"actor_id"`
	Changes   map[string]Change  `bson:"changes,omitempty" json:"changes,omitempty"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

type Log struct {
	Message      string    `bson:"message" json:"message"`
	SessionID    string    `bson:"session_id,omitempty" json:"session_id,omitempty"`
	LeadID       int64     `bson:"lead_id,omitempty" json:"lead_id,omitempty"`
	Caller       string    `bson:"caller,omitempty" json:"caller,omitempty"`
	AppID        string    `bson:"app_id" json:"app_id"`
	LogLevelId   int       `bson:"log_level_id" json:"log_level_id"`
	CreatedOnUtc time.Time `bson:"created_on_utc" json:"created_on_utc"`
}
