package auth

import (
	"strconv"

	"records-console/internal/common/api"
	"records-console/internal/common/apperrors"
	consolevalidator "records-console/internal/common/validator"
	"records-console/internal/features/lookup"
	"records-console/internal/features/permission"
	"records-console/internal/features/session"
	"records-console/internal/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type AuthController struct {
	Sessions session.SessionService
	Lookups  lookup.LookupService
	validate *validator.Validate
}

func NewAuthController(sessions session.SessionService, lookups lookup.LookupService) *AuthController {
	return &AuthController{
		Sessions: sessions,
		Lookups:  lookups,
		validate: consolevalidator.New(),
	}
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required,max=200"`
}

// Login godoc
// @Summary      Open a console session
// @Description  Authenticates against the records backend and loads the permission matrix
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body LoginRequest true "Credentials"
// @Success      200  {object} session.LoginResult
// @Failure      401  {object} map[string]interface{}
// @Router       /api/auth/login [post]
func (ctrl *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := ctrl.validate.Struct(req); err != nil {
		return api.ErrorResponse(c, consolevalidator.ToValidationError("invalid credentials", err))
	}

	result, err := ctrl.Sessions.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	return c.JSON(result)
}

// Logout godoc
// @Summary  Close the current session
// @Tags     auth
// @Router   /api/auth/logout [post]
func (ctrl *AuthController) Logout(c *fiber.Ctx) error {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}
	if err := ctrl.Sessions.Logout(c.UserContext(), sess.ID); err != nil {
		return api.ErrorResponse(c, err)
	}
	ctrl.Lookups.Forget(sess.ID)
	return c.JSON(fiber.Map{"status": "logged out"})
}

func (ctrl *AuthController) Me(c *fiber.Ctx) error {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}
	return c.JSON(sess)
}

// Permissions returns the session's permission matrix as loaded at login.
func (ctrl *AuthController) Permissions(c *fiber.Ctx) error {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}
	return c.JSON(sess.Matrix.Records())
}

// Evaluate godoc
// @Summary  Explain whether the session may perform an action
// @Tags     permissions
// @Param    module  query int    true "Module id"
// @Param    feature query int    true "Feature id"
// @Param    action  query string true "read, write, edit or delete"
// @Success  200 {object} permission.Decision
// @Router   /api/permissions/evaluate [get]
func (ctrl *AuthController) Evaluate(c *fiber.Ctx) error {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	ve := apperrors.NewValidationError("invalid evaluation query")
	moduleID, err := strconv.Atoi(c.Query("module"))
	if err != nil {
		ve.Add("module", "must be a number")
	}
	featureID, err := strconv.Atoi(c.Query("feature"))
	if err != nil {
		ve.Add("feature", "must be a number")
	}
	action, err := permission.ParseAction(c.Query("action"))
	if err != nil {
		ve.Add("action", err.Error())
	}
	if ve.HasFields() {
		return api.ErrorResponse(c, ve)
	}

	return c.JSON(sess.Evaluator().Decide(moduleID, featureID, action))
}
