package commit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"records-console/internal/common/apperrors"
	common_models "records-console/internal/common/models"
	"records-console/internal/config"
	"records-console/internal/features/notification"
	"records-console/internal/features/pending"
	"records-console/internal/features/permission"
	"records-console/internal/features/session"
	"records-console/internal/features/workflow"
	"records-console/internal/gateway"

	"go.uber.org/zap"
)

const ledgerTimeout = 5 * time.Second

// Coordinator executes a prepared request as two ordered writes: the lead, then its action.
type Coordinator interface {
	Commit(ctx context.Context, sess *session.Session, req *workflow.CompositeCommitRequest) Outcome
	// RetryAction re-issues only the action write of a recorded partial failure.
	RetryAction(ctx context.Context, sess *session.Session, pendingID string) Outcome
	RetryPending(ctx context.Context, sess *session.Session, record *pending.PendingAction) Outcome
}

type CommitCoordinator struct {
	Gateway      gateway.ResourceGateway
	Pending      pending.PendingService
	Publisher    notification.Publisher
	AuditService session.Auditor

	writeTimeout  time.Duration
	inflight      *inFlight
	logger        *zap.Logger
}

func NewCommitCoordinator(
	gw gateway.ResourceGateway,
	pendingService pending.PendingService,
	publisher notification.Publisher,
	auditService session.Auditor,
	cfg *config.Config,
	logger *zap.Logger,
) Coordinator {
	return &CommitCoordinator{
		Gateway:       gw,
		Pending:       pendingService,
		Publisher:     publisher,
		AuditService:  auditService,
		writeTimeout:  cfg.GatewayTimeout,
		inflight:      newInFlight(),
		logger:        logger.Named("commit"),
	}
}

func (c *CommitCoordinator) Commit(ctx context.Context, sess *session.Session, req *workflow.CompositeCommitRequest) Outcome {
	if req == nil || !req.State.Committable() {
		return failure(req, apperrors.NewValidationError("request is not ready to commit"))
	}
	if req.SessionID != sess.ID {
		return failure(req, apperrors.PermissionDenied("request belongs to another session"))
	}

	key := commitKey(sess.ID, req)
	if !c.inflight.acquire(key) {
		return failure(req, apperrors.ErrCommitInFlight)
	}
	defer c.inflight.release(key)

	log := c.logger.With(zap.String("session_id", sess.ID), zap.String("request_id", req.ID))

	// The matrix may have been replaced since the request was prepared.
	eval := sess.Evaluator()
	leadAction := permission.ActionEdit
	if req.Lead.IsCreate() {
		leadAction = permission.ActionWrite
	}
	if err := eval.Require(permission.ModuleRealEstate, permission.FeatureLeads, leadAction); err != nil {
		req.State = workflow.StateRejected
		return failure(req, err)
	}

	writeAction := req.HasAction()
	warnings := req.Warnings
	if writeAction && !eval.Allowed(permission.ModuleRealEstate, permission.FeatureActions, permission.ActionWrite) {
		writeAction = false
		warnings = append(warnings, workflow.Warning{
			Code:    workflow.WarningActionPermission,
			Message: "you no longer have permission to create calls or meetings; the lead was saved without an action",
		})
	}

	if err := ctx.Err(); err != nil {
		req.State = workflow.StateRejected
		return failure(req, err)
	}

	// Once issued, the lead write is not abandoned with the caller: a backend that already
	// committed it would otherwise be reported as "nothing happened".
	wctx, wcancel := context.WithTimeout(context.WithoutCancel(ctx), c.writeTimeout)
	lead, err := c.Gateway.WriteLead(wctx, sess.Credential, req.Lead)
	wcancel()
	if err != nil {
		req.State = workflow.StateRejected
		log.Warn("lead write failed", zap.Int64("lead_id", req.Lead.LeadID), zap.Error(err))
		return failure(req, err)
	}
	req.State = workflow.StateCommitted
	log = log.With(zap.Int64("lead_id", lead.LeadID))
	c.auditLead(ctx, req, lead)

	if !writeAction {
		kind := KindSuccess
		if req.Mandatory {
			kind = KindSuccessWithoutAction
		}
		log.Info("lead committed", zap.String("outcome", string(kind)))
		return Outcome{Kind: kind, RequestID: req.ID, Lead: &lead, Warnings: warnings}
	}

	// Step two runs detached so a dismissed caller cannot strand a saved lead without its action.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.writeTimeout)
	defer cancel()

	action, err := c.Gateway.WriteAction(actx, sess.Credential, req.ActionKind, lead.LeadID, *req.Action)
	if err != nil {
		return c.partialFailure(ctx, sess, req, lead, warnings, err)
	}

	c.audit(ctx, common_models.AuditActionActionCreate, strconv.FormatInt(action.ID, 10), map[string]common_models.Change{
		"lead_id":   {New: lead.LeadID},
		"kind":      {New: action.Kind},
		"status_id": {New: action.StatusID},
	})
	log.Info("lead and action committed", zap.Int64("action_id", action.ID), zap.String("action_type", string(action.Kind)))
	return Outcome{Kind: KindSuccess, RequestID: req.ID, Lead: &lead, Action: &action, Warnings: warnings}
}

func (c *CommitCoordinator) partialFailure(ctx context.Context, sess *session.Session, req *workflow.CompositeCommitRequest, lead gateway.Lead, warnings []workflow.Warning, cause error) Outcome {
	perr := &PartialFailureError{LeadID: lead.LeadID, Kind: req.ActionKind, Err: cause}
	out := Outcome{
		Kind:      KindPartialFailure,
		RequestID: req.ID,
		Lead:      &lead,
		Warnings:  warnings,
		Retryable: apperrors.IsRetryable(cause),
		Err:       perr,
	}

	record := &pending.PendingAction{
		SessionID: sess.ID,
		UserID:    sess.UserID(),
		RequestID: req.ID,
		LeadID:    lead.LeadID,
		Kind:      req.ActionKind,
		Payload:   *req.Action,
		LastError: cause.Error(),
		Retryable: out.Retryable,
	}
	lctx, cancel := c.detached(ctx)
	defer cancel()
	if err := c.Pending.Record(lctx, record); err != nil {
		c.logger.Error("recording pending action failed",
			zap.String("session_id", sess.ID),
			zap.Int64("lead_id", lead.LeadID),
			zap.Error(err),
		)
	} else {
		out.PendingID = record.ID.Hex()
	}

	c.logger.Error("action write failed after lead was saved",
		zap.String("session_id", sess.ID),
		zap.String("request_id", req.ID),
		zap.Int64("lead_id", lead.LeadID),
		zap.String("action_type", string(req.ActionKind)),
		zap.Bool("timeout", apperrors.IsTimeout(cause)),
		zap.Error(cause),
	)

	c.audit(ctx, common_models.AuditActionPartial, strconv.FormatInt(lead.LeadID, 10), map[string]common_models.Change{
		"kind":  {New: req.ActionKind},
		"error": {New: cause.Error()},
	})

	c.Publisher.Publish(notification.Event{
		Type:      notification.EventPartialFailure,
		SessionID: sess.ID,
		LeadID:    lead.LeadID,
		PendingID: out.PendingID,
		Message:   perr.Error(),
		Retryable: out.Retryable,
	})
	return out
}

func (c *CommitCoordinator) RetryAction(ctx context.Context, sess *session.Session, pendingID string) Outcome {
	record, err := c.Pending.Get(ctx, pendingID)
	if err != nil {
		return Outcome{Kind: KindFailure, Err: err}
	}
	if record.UserID != sess.UserID() {
		return Outcome{Kind: KindFailure, Err: fmt.Errorf("%w: pending action %s", apperrors.ErrNotFound, pendingID)}
	}
	return c.RetryPending(ctx, sess, record)
}

func (c *CommitCoordinator) RetryPending(ctx context.Context, sess *session.Session, record *pending.PendingAction) Outcome {
	lead := &gateway.Lead{LeadID: record.LeadID}
	pendingID := record.ID.Hex()
	log := c.logger.With(zap.String("session_id", sess.ID), zap.String("pending_id", pendingID), zap.Int64("lead_id", record.LeadID))

	if record.Status != pending.StatusPending {
		return Outcome{Kind: KindFailure, Lead: lead, PendingID: pendingID,
			Err: apperrors.NewValidationError(fmt.Sprintf("pending action is %s", record.Status))}
	}
	if err := sess.Evaluator().Require(permission.ModuleRealEstate, permission.FeatureActions, permission.ActionWrite); err != nil {
		c.recordRetryFailure(ctx, sess, record, err, log)
		return Outcome{Kind: KindFailure, Lead: lead, PendingID: pendingID, Err: err}
	}

	key := leadKey(sess.ID, record.LeadID)
	if !c.inflight.acquire(key) {
		return Outcome{Kind: KindFailure, Lead: lead, PendingID: pendingID, Retryable: true, Err: apperrors.ErrCommitInFlight}
	}
	defer c.inflight.release(key)

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.writeTimeout)
	defer cancel()

	action, err := c.Gateway.WriteAction(actx, sess.Credential, record.Kind, record.LeadID, record.Payload)
	if err != nil {
		abandoned := c.recordRetryFailure(ctx, sess, record, err, log)
		log.Warn("action retry failed", zap.Error(err))
		return Outcome{
			Kind:      KindPartialFailure,
			Lead:      lead,
			PendingID: pendingID,
			Retryable: !abandoned && apperrors.IsRetryable(err),
			Err:       &PartialFailureError{LeadID: record.LeadID, Kind: record.Kind, Err: err},
		}
	}

	lctx, lcancel := c.detached(ctx)
	defer lcancel()
	if err := c.Pending.Resolve(lctx, pendingID, action); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		log.Error("resolving pending action failed", zap.Error(err))
	}
	c.audit(ctx, common_models.AuditActionActionRetried, strconv.FormatInt(action.ID, 10), map[string]common_models.Change{
		"lead_id":    {New: record.LeadID},
		"pending_id": {New: pendingID},
	})
	c.Publisher.Publish(notification.Event{
		Type:      notification.EventActionResolved,
		SessionID: sess.ID,
		LeadID:    record.LeadID,
		PendingID: pendingID,
		Message:   fmt.Sprintf("%s for lead %d was created", record.Kind, record.LeadID),
	})
	log.Info("pending action resolved", zap.Int64("action_id", action.ID))
	return Outcome{Kind: KindSuccess, Lead: lead, Action: &action, PendingID: pendingID}
}

// recordRetryFailure counts a failed retry against the record and reports whether it was abandoned.
func (c *CommitCoordinator) recordRetryFailure(ctx context.Context, sess *session.Session, record *pending.PendingAction, cause error, log *zap.Logger) bool {
	pendingID := record.ID.Hex()

	lctx, cancel := c.detached(ctx)
	defer cancel()

	updated, err := c.Pending.Fail(lctx, pendingID, cause)
	if err != nil {
		log.Error("recording retry attempt failed", zap.Error(err))
		return false
	}
	if updated.Status != pending.StatusAbandoned {
		return false
	}

	c.audit(ctx, common_models.AuditActionAbandoned, strconv.FormatInt(record.LeadID, 10), map[string]common_models.Change{
		"pending_id": {New: pendingID},
	})
	c.Publisher.Publish(notification.Event{
		Type:      notification.EventActionAbandon,
		SessionID: sess.ID,
		LeadID:    record.LeadID,
		PendingID: pendingID,
		Message:   updated.LastError,
	})
	return true
}

func (c *CommitCoordinator) auditLead(ctx context.Context, req *workflow.CompositeCommitRequest, lead gateway.Lead) {
	action := common_models.AuditActionLeadUpdate
	if req.Lead.IsCreate() {
		action = common_models.AuditActionLeadCreate
	}
	changes := make(map[string]common_models.Change, len(req.Lead.Fields)+1)
	for k, v := range req.Lead.Fields {
		changes[k] = common_models.Change{New: v}
	}
	if req.Lead.LeadStage != nil {
		changes["lead_stage"] = common_models.Change{New: *req.Lead.LeadStage}
	}
	c.audit(ctx, action, strconv.FormatInt(lead.LeadID, 10), changes)
}

func (c *CommitCoordinator) audit(ctx context.Context, action common_models.AuditAction, recordID string, changes map[string]common_models.Change) {
	if err := c.AuditService.LogChange(context.WithoutCancel(ctx), action, "leads", recordID, changes); err != nil {
		c.logger.Warn("audit write failed", zap.String("action", string(action)), zap.Error(err))
	}
}

// detached derives a context for ledger writes that outlives both the caller and the action timeout.
func (c *CommitCoordinator) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
}

func failure(req *workflow.CompositeCommitRequest, err error) Outcome {
	out := Outcome{Kind: KindFailure, Retryable: apperrors.IsRetryable(err), Err: err}
	if req != nil {
		out.RequestID = req.ID
		out.Warnings = req.Warnings
	}
	return out
}
