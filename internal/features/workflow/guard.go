package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"records-console/internal/common/apperrors"
	consolevalidator "records-console/internal/common/validator"
	"records-console/internal/features/lookup"
	"records-console/internal/features/permission"
	"records-console/internal/features/session"
	"records-console/internal/gateway"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Guard turns a lead mutation and an optional action draft into a committable request.
type Guard interface {
	PrepareCommit(ctx context.Context, sess *session.Session, mutation gateway.LeadMutation, draft *ActionDraft) (*CompositeCommitRequest, error)
}

// StageWorkflowGuard enforces that moving a lead into the Action Taken stage is paired
// with a call or meeting, and that the session may perform the writes involved.
type StageWorkflowGuard struct {
	Lookups  lookup.LookupService
	validate *validator.Validate
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

func NewStageWorkflowGuard(lookups lookup.LookupService, logger *zap.Logger) Guard {
	return &StageWorkflowGuard{
		Lookups:  lookups,
		validate: consolevalidator.New(),
		location: time.Local,
		logger:   logger.Named("workflow"),
		now:      time.Now,
	}
}

var leadFieldRules = map[string]interface{}{
	"lead_phone": "omitempty,max=50",
	"name":       "omitempty,max=50",
	"email":      "omitempty,max=50",
	"gender":     "omitempty,oneof=Male Female",
	"job_title":  "omitempty,max=100",
}

func (g *StageWorkflowGuard) PrepareCommit(ctx context.Context, sess *session.Session, mutation gateway.LeadMutation, draft *ActionDraft) (*CompositeCommitRequest, error) {
	req := &CompositeCommitRequest{
		ID:         uuid.NewString(),
		SessionID:  sess.ID,
		Lead:       mutation,
		State:      StateEvaluating,
		PreparedAt: g.now(),
	}
	log := g.logger.With(zap.String("session_id", sess.ID), zap.String("request_id", req.ID), zap.Int64("lead_id", mutation.LeadID))

	eval := sess.Evaluator()
	leadAction := permission.ActionEdit
	if mutation.IsCreate() {
		leadAction = permission.ActionWrite
	}
	if err := eval.Require(permission.ModuleRealEstate, permission.FeatureLeads, leadAction); err != nil {
		log.Info("lead mutation rejected", zap.String("action", string(leadAction)))
		return nil, err
	}

	if err := g.validateLead(ctx, sess, mutation); err != nil {
		return nil, err
	}

	stageID, err := g.Lookups.ActionTakenStage(ctx, sess)
	if err != nil {
		return nil, err
	}
	req.ActionTakenStage = stageID

	if mutation.LeadStage == nil || *mutation.LeadStage != stageID {
		if !draft.Empty() {
			req.warn(WarningDraftIgnored, "the selected stage does not require an action; the action was not saved")
		}
		req.State = StateActionNotRequired
		log.Debug("commit prepared", zap.String("state", string(req.State)))
		return req, nil
	}

	req.Mandatory = true

	if !eval.Allowed(permission.ModuleRealEstate, permission.FeatureActions, permission.ActionWrite) {
		req.ActionSkipped = true
		req.warn(WarningActionPermission, "you do not have permission to create calls or meetings; the lead will be saved without an action")
		req.State = StateActionWaived
		log.Info("action waived for missing permission")
		return req, nil
	}

	req.State = StateActionRequiredIncomplete
	if draft.Empty() {
		return nil, apperrors.NewValidationError("a call or meeting is required when moving a lead to this stage",
			apperrors.FieldError{Field: "action_type", Message: "is required"},
			apperrors.FieldError{Field: "date", Message: "is required"},
			apperrors.FieldError{Field: "time", Message: "is required"},
			apperrors.FieldError{Field: "status_id", Message: "is required"},
		)
	}

	kind, payload, err := g.buildAction(ctx, sess, draft)
	if err != nil {
		return nil, err
	}

	req.ActionKind = kind
	req.Action = payload
	req.State = StateActionRequiredComplete
	log.Debug("commit prepared", zap.String("state", string(req.State)), zap.String("action_type", string(kind)))
	return req, nil
}

func (g *StageWorkflowGuard) buildAction(ctx context.Context, sess *session.Session, draft *ActionDraft) (gateway.ActionKind, *gateway.ActionPayload, error) {
	norm := *draft
	norm.ActionType = strings.ToLower(strings.TrimSpace(norm.ActionType))
	norm.Date = strings.TrimSpace(norm.Date)
	norm.Time = strings.TrimSpace(norm.Time)

	if err := g.validate.Struct(norm); err != nil {
		return "", nil, consolevalidator.ToValidationError("action is incomplete", err)
	}

	kind, err := gateway.ParseActionKind(norm.ActionType)
	if err != nil {
		return "", nil, apperrors.NewValidationError("action is incomplete", apperrors.FieldError{Field: "action_type", Message: err.Error()})
	}

	at, err := g.combine(norm.Date, norm.Time)
	if err != nil {
		return "", nil, apperrors.NewValidationError("action is incomplete", apperrors.FieldError{Field: "time", Message: err.Error()})
	}

	ok, err := g.Lookups.ValidStatus(ctx, sess, kind, int(norm.StatusID))
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, apperrors.NewValidationError("action is incomplete",
			apperrors.FieldError{Field: "status_id", Message: fmt.Sprintf("is not a known %s status", kind)})
	}

	return kind, &gateway.ActionPayload{Date: at, StatusID: int(norm.StatusID)}, nil
}

// combine joins the date and time fields into one instant in the console's local zone.
func (g *StageWorkflowGuard) combine(date, clock string) (time.Time, error) {
	c, ok := consolevalidator.ParseClock(clock)
	if !ok {
		return time.Time{}, fmt.Errorf("must be a time formatted HH:MM")
	}
	d, err := time.ParseInLocation("2006-01-02", date, g.location)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), 0, g.location), nil
}

func (g *StageWorkflowGuard) validateLead(ctx context.Context, sess *session.Session, mutation gateway.LeadMutation) error {
	ve := apperrors.NewValidationError("lead is invalid")

	if mutation.IsCreate() {
		phone, _ := mutation.Fields["lead_phone"].(string)
		if strings.TrimSpace(phone) == "" {
			ve.Add("lead_phone", "is required")
		}
	}

	if len(mutation.Fields) > 0 {
		data := make(map[string]interface{}, len(leadFieldRules))
		rules := make(map[string]interface{}, len(leadFieldRules))
		for field, rule := range leadFieldRules {
			if v, ok := mutation.Fields[field]; ok && v != nil {
				data[field] = v
				rules[field] = rule
			}
		}
		errs := g.validate.ValidateMap(data, rules)
		fields := make([]string, 0, len(errs))
		for field := range errs {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			if fieldErrs, ok := errs[field].(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
				ve.Add(field, consolevalidator.Describe(fieldErrs[0]))
				continue
			}
			ve.Add(field, "is invalid")
		}
	}

	if mutation.LeadStage != nil {
		stages, err := g.Lookups.Vocabulary(ctx, sess, gateway.VocabularyStages)
		switch {
		case apperrors.IsPermissionDenied(err):
			// Sessions without Leads.read cannot list stages; the backend still validates the value.
			g.logger.Debug("stage vocabulary not readable, membership not checked", zap.String("session_id", sess.ID))
		case err != nil:
			return err
		case !contains(stages, *mutation.LeadStage):
			ve.Add("lead_stage", "is not a known stage")
		}
	}

	if ve.HasFields() {
		return ve
	}
	return nil
}

func contains(items []gateway.LookupItem, id int) bool {
	for _, it := range items {
		if it.ID == id {
			return true
		}
	}
	return false
}
