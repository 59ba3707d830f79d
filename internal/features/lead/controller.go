package lead

import (
	"context"
	"errors"
	"strconv"
	"time"

	"records-console/internal/common/api"
	"records-console/internal/common/apperrors"
	"records-console/internal/features/commit"
	"records-console/internal/features/lookup"
	"records-console/internal/features/pending"
	"records-console/internal/features/workflow"
	"records-console/internal/gateway"
	"records-console/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type LeadController struct {
	Guard       workflow.Guard
	Coordinator commit.Coordinator
	Pending     pending.PendingService
	Lookups     lookup.LookupService
	Gateway     gateway.ResourceGateway
}

func NewLeadController(
	guard workflow.Guard,
	coordinator commit.Coordinator,
	pendingService pending.PendingService,
	lookups lookup.LookupService,
	gw gateway.ResourceGateway,
) *LeadController {
	return &LeadController{
		Guard:       guard,
		Coordinator: coordinator,
		Pending:     pendingService,
		Lookups:     lookups,
		Gateway:     gw,
	}
}

// CommitBody is a lead mutation with the optional call/meeting form.
type CommitBody struct {
	LeadID    int64                 `json:"lead_id"`
	LeadStage *int                  `json:"lead_stage"`
	Fields    map[string]any        `json:"fields"`
	Action    *workflow.ActionDraft `json:"action"`
}

func (b CommitBody) mutation() gateway.LeadMutation {
	return gateway.LeadMutation{LeadID: b.LeadID, LeadStage: b.LeadStage, Fields: b.Fields}
}

// Prepare godoc
// @Summary      Validate a lead mutation without writing it
// @Description  Reports whether the target stage requires an action and any warnings
// @Tags         leads
// @Accept       json
// @Produce      json
// @Param        input body CommitBody true "Lead mutation"
// @Success      200  {object} workflow.CompositeCommitRequest
// @Failure      403  {object} map[string]interface{}
// @Failure      422  {object} map[string]interface{}
// @Router       /api/leads/prepare [post]
func (ctrl *LeadController) Prepare(c *fiber.Ctx) error {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var body CommitBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	req, err := ctrl.Guard.PrepareCommit(c.UserContext(), sess, body.mutation(), body.Action)
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	return c.JSON(req)
}

// Commit godoc
// @Summary      Save a lead and, when its stage requires one, its call or meeting
// @Tags         leads
// @Accept       json
// @Produce      json
// @Param        input body CommitBody true "Lead mutation"
// @Success      200  {object} commit.Outcome
// @Success      201  {object} commit.Outcome
// @Success      207  {object} commit.Outcome "Lead saved, action failed"
// @Failure      403  {object} map[string]interface{}
// @Failure      409  {object} map[string]interface{}
// @Failure      422  {object} map[string]interface{}
// @Failure      502  {object} map[string]interface{}
// @Router       /api/leads/commit [post]
func (ctrl *LeadController) Commit(c *fiber.Ctx) error {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var body CommitBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	req, err := ctrl.Guard.PrepareCommit(c.UserContext(), sess, body.mutation(), body.Action)
	if err != nil {
		return api.ErrorResponse(c, err)
	}

	out := ctrl.Coordinator.Commit(c.UserContext(), sess, req)
	return outcomeResponse(c, out, req.Lead.IsCreate())
}

// ListPending godoc
// @Summary  List the caller's unresolved actions
// @Tags     leads
// @Param    status query string false "pending, resolved or abandoned"
// @Router   /api/leads/pending-actions [get]
func (ctrl *LeadController) ListPending(c *fiber.Ctx) error {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	status := pending.Status(c.Query("status", string(pending.StatusPending)))
	if c.Query("status") == "all" {
		status = ""
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 10*time.Second)
	defer cancel()

	actions, err := ctrl.Pending.ListForUser(ctx, sess.UserID(), status)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"data": actions, "total": len(actions)})
}

// RetryPending godoc
// @Summary  Re-issue the action write of a partial failure
// @Tags     leads
// @Param    id path string true "Pending action id"
// @Router   /api/leads/pending-actions/{id}/retry [post]
func (ctrl *LeadController) RetryPending(c *fiber.Ctx) error {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	out := ctrl.Coordinator.RetryAction(c.UserContext(), sess, c.Params("id"))
	return outcomeResponse(c, out, false)
}

func (ctrl *LeadController) GetLead(c *fiber.Ctx) error {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid lead id"})
	}

	lead, err := ctrl.Gateway.FetchLead(c.UserContext(), sess.Credential, id)
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	return c.JSON(lead)
}

// GetLookup returns one vocabulary (stages, statuses, types, call-statuses, meeting-statuses).
func (ctrl *LeadController) GetLookup(c *fiber.Ctx) error {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	vocabulary := c.Params("vocabulary")
	switch vocabulary {
	case gateway.VocabularyStages, gateway.VocabularyLeadStatuses, gateway.VocabularyLeadTypes,
		gateway.VocabularyCallStatuses, gateway.VocabularyMeetingStatuses:
	default:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Unknown vocabulary"})
	}

	items, err := ctrl.Lookups.Vocabulary(c.UserContext(), sess, vocabulary)
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	return c.JSON(items)
}

func outcomeResponse(c *fiber.Ctx, out commit.Outcome, created bool) error {
	body := fiber.Map{
		"outcome":   out.Kind,
		"message":   out.Message(),
		"retryable": out.Retryable,
	}
	if out.RequestID != "" {
		body["request_id"] = out.RequestID
	}
	if out.Lead != nil {
		body["lead"] = out.Lead
	}
	if out.Action != nil {
		body["action"] = out.Action
	}
	if len(out.Warnings) > 0 {
		body["warnings"] = out.Warnings
	}
	if out.PendingID != "" {
		body["pending_id"] = out.PendingID
	}

	switch out.Kind {
	case commit.KindSuccess, commit.KindSuccessWithoutAction:
		if created {
			return c.Status(fiber.StatusCreated).JSON(body)
		}
		return c.JSON(body)
	case commit.KindPartialFailure:
		return c.Status(fiber.StatusMultiStatus).JSON(body)
	default:
		body["error"] = out.Err.Error()
		var ve *apperrors.ValidationError
		if errors.As(out.Err, &ve) {
			body["error"] = ve.Message
			body["fields"] = ve.Fields
		}
		return c.Status(apperrors.HTTPStatus(out.Err)).JSON(body)
	}
}
