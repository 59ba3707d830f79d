package workflow

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"records-console/internal/gateway"
)

// State is the request-scoped position of one mutation attempt. It is never persisted.
type State string

const (
	StateEvaluating               State = "evaluating"
	StateActionNotRequired        State = "action_not_required"
	StateActionRequiredIncomplete State = "action_required_incomplete"
	StateActionRequiredComplete   State = "action_required_complete"
	// StateActionWaived: the stage requires an action but the session cannot write actions,
	// so the lead is saved alone and a warning is surfaced.
	StateActionWaived State = "action_required_waived"
	StateCommitted    State = "committed"
	StateRejected     State = "rejected"
)

// Committable reports whether a request in this state may be handed to the coordinator.
func (s State) Committable() bool {
	switch s {
	case StateActionNotRequired, StateActionRequiredComplete, StateActionWaived:
		return true
	default:
		return false
	}
}

type WarningCode string

const (
	WarningActionPermission WarningCode = "action_permission_missing"
	WarningDraftIgnored     WarningCode = "action_draft_ignored"
)

type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// StatusRef accepts a status id sent either as a JSON number or a numeric string.
// An empty string decodes to zero.
type StatusRef int

func (r *StatusRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*r = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*r = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*r = StatusRef(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*r = StatusRef(n)
	return nil
}

// ActionDraft is the call/meeting form the caller submits alongside a lead mutation.
type ActionDraft struct {
	ActionType string    `json:"action_type" validate:"required,oneof=call meeting"`
	Date       string    `json:"date" validate:"required,datetime=2006-01-02"`
	Time       string    `json:"time" validate:"required,clocktime"`
	StatusID   StatusRef `json:"status_id" validate:"required,gt=0"`
}

func (d *ActionDraft) Empty() bool {
	return d == nil || (d.ActionType == "" && d.Date == "" && d.Time == "" && d.StatusID == 0)
}

// CompositeCommitRequest is the validated unit handed to the coordinator: a lead
// mutation plus, when the target stage demands it, the action to create after it.
type CompositeCommitRequest struct {
	ID               string                 `json:"id"`
	SessionID        string                 `json:"session_id"`
	Lead             gateway.LeadMutation   `json:"lead"`
	ActionTakenStage int                    `json:"action_taken_stage"`
	Mandatory        bool                   `json:"action_mandatory"`
	ActionSkipped    bool                   `json:"action_skipped"`
	ActionKind       gateway.ActionKind     `json:"action_type,omitempty"`
	Action           *gateway.ActionPayload `json:"action,omitempty"`
	Warnings         []Warning              `json:"warnings,omitempty"`
	State            State                  `json:"state"`
	PreparedAt       time.Time              `json:"prepared_at"`
}

func (r *CompositeCommitRequest) HasAction() bool {
	return r != nil && r.Action != nil
}

func (r *CompositeCommitRequest) warn(code WarningCode, message string) {
	r.Warnings = append(r.Warnings, Warning{Code: code, Message: message})
}
