package commit

import (
	"fmt"

	"records-console/internal/features/workflow"
	"records-console/internal/gateway"
)

type Kind string

const (
	KindSuccess              Kind = "success"
	KindSuccessWithoutAction Kind = "success_without_action"
	KindPartialFailure       Kind = "partial_failure"
	KindFailure              Kind = "failure"
)

// Outcome is the single result of a commit or retry. Err is set for PartialFailure and Failure.
type Outcome struct {
	Kind      Kind               `json:"outcome"`
	RequestID string             `json:"request_id,omitempty"`
	Lead      *gateway.Lead      `json:"lead,omitempty"`
	Action    *gateway.Action    `json:"action,omitempty"`
	Warnings  []workflow.Warning `json:"warnings,omitempty"`
	PendingID string             `json:"pending_id,omitempty"`
	Retryable bool               `json:"retryable"`
	Err       error              `json:"-"`
}

func (o Outcome) Succeeded() bool {
	return o.Kind == KindSuccess || o.Kind == KindSuccessWithoutAction
}

// LeadID is the id of the saved lead, or zero when step one never succeeded.
func (o Outcome) LeadID() int64 {
	if o.Lead == nil {
		return 0
	}
	return o.Lead.LeadID
}

func (o Outcome) Message() string {
	switch o.Kind {
	case KindSuccess:
		if o.Action != nil {
			return fmt.Sprintf("lead %d saved and %s scheduled", o.LeadID(), o.Action.Kind)
		}
		return fmt.Sprintf("lead %d saved", o.LeadID())
	case KindSuccessWithoutAction:
		return fmt.Sprintf("lead %d saved without an action", o.LeadID())
	default:
		if o.Err != nil {
			return o.Err.Error()
		}
		return string(o.Kind)
	}
}

// PartialFailureError reports that the lead was saved but its action was not.
type PartialFailureError struct {
	LeadID int64
	Kind   gateway.ActionKind
	Err    error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("lead %d was saved but the %s could not be created: %v", e.LeadID, e.Kind, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}
