package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"records-console/internal/features/permission"
)

// Credential is the opaque blob attached to every call to the records backend.
type Credential string

type UserInfo struct {
	ID            int    `json:"id"`
	Username      string `json:"username"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	CompanyDomain string `json:"company_domain"`
}

// LeadMutation is a create (LeadID == 0) or update of a lead.
type LeadMutation struct {
	LeadID    int64          `json:"lead_id,omitempty"`
	LeadStage *int           `json:"lead_stage,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

func (m LeadMutation) IsCreate() bool {
	return m.LeadID == 0
}

// Body flattens the mutation into the payload accepted by the leads endpoint.
func (m LeadMutation) Body() map[string]any {
	body := make(map[string]any, len(m.Fields)+1)
	for k, v := range m.Fields {
		if k == "lead_id" || k == "lead_stage" {
			continue
		}
		body[k] = v
	}
	if m.LeadStage != nil {
		body["lead_stage"] = *m.LeadStage
	}
	return body
}

type Lead struct {
	LeadID     int64  `json:"lead_id"`
	LeadStage  *int   `json:"lead_stage"`
	LeadStatus *int   `json:"lead_status,omitempty"`
	LeadType   *int   `json:"lead_type,omitempty"`
	Name       string `json:"name,omitempty"`
	LeadPhone  string `json:"lead_phone,omitempty"`
	AssignedTo *int   `json:"assigned_to,omitempty"`
}

type ActionKind string

const (
	ActionCall    ActionKind = "call"
	ActionMeeting ActionKind = "meeting"
)

func ParseActionKind(s string) (ActionKind, error) {
	switch k := ActionKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ActionCall, ActionMeeting:
		return k, nil
	default:
		return "", fmt.Errorf("unknown action type %q", s)
	}
}

// StatusVocabulary names the lookup holding the statuses valid for this kind.
func (k ActionKind) StatusVocabulary() string {
	if k == ActionMeeting {
		return VocabularyMeetingStatuses
	}
	return VocabularyCallStatuses
}

type ActionPayload struct {
	Date     time.Time `json:"date" bson:"date"`
	StatusID int       `json:"status_id" bson:"status_id"`
}

// Body renders the payload with the kind-specific field names.
func (p ActionPayload) Body(kind ActionKind) map[string]any {
	if kind == ActionMeeting {
		return map[string]any{"meeting_date": p.Date.UTC().Format(time.RFC3339), "meeting_status": p.StatusID}
	}
	return map[string]any{"call_date": p.Date.UTC().Format(time.RFC3339), "call_status": p.StatusID}
}

type Action struct {
	ID       int64      `json:"id"`
	Kind     ActionKind `json:"kind"`
	LeadID   int64      `json:"lead_id"`
	Date     time.Time  `json:"date"`
	StatusID int        `json:"status_id"`
}

type LookupItem struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

const (
	VocabularyStages          = "stages"
	VocabularyLeadStatuses    = "statuses"
	VocabularyLeadTypes       = "types"
	VocabularyCallStatuses    = "call-statuses"
	VocabularyMeetingStatuses = "meeting-statuses"
)

// ResourceGateway is the only way the core reaches the records backend.
// A 403 from any operation surfaces as apperrors.ErrPermissionDenied, payload
// rejections as *apperrors.ValidationError and transport failures as *apperrors.GatewayError.
type ResourceGateway interface {
	Authenticate(ctx context.Context, username, password string) (Credential, UserInfo, error)
	FetchPermissions(ctx context.Context, cred Credential) ([]permission.Permission, error)
	FetchLead(ctx context.Context, cred Credential, leadID int64) (Lead, error)
	WriteLead(ctx context.Context, cred Credential, mutation LeadMutation) (Lead, error)
	WriteAction(ctx context.Context, cred Credential, kind ActionKind, leadID int64, payload ActionPayload) (Action, error)
	FetchLookup(ctx context.Context, cred Credential, vocabulary string) ([]LookupItem, error)
}
