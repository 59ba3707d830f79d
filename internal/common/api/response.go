package api

import (
	"errors"

	"records-console/internal/common/apperrors"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse writes err with the status apperrors.HTTPStatus assigns to it.
// Validation failures include their field list.
func ErrorResponse(c *fiber.Ctx, err error) error {
	body := fiber.Map{"error": err.Error()}
	var ve *apperrors.ValidationError
	if errors.As(err, &ve) {
		body["error"] = ve.Message
		body["fields"] = ve.Fields
	}
	return c.Status(apperrors.HTTPStatus(err)).JSON(body)
}
