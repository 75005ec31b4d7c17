package serverutils

import (
	"errors"

	"vision-assistant-be/internal/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware renders any error a handler returns as {success:false, code, message}.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return WriteError(ctx, err)
	}
}

func WriteError(ctx *fiber.Ctx, err error) error {
	status, message := StatusAndMessage(err)
	return ctx.Status(status).JSON(ErrorResponse(status, message))
}

// StatusAndMessage maps an error to the HTTP status and the text safe to show clients.
func StatusAndMessage(err error) (int, string) {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, fiberErr.Message
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return fiber.StatusBadRequest, validationErr.Error()
	}

	return apperror.HTTPStatus(err), apperror.PublicMessage(err)
}
