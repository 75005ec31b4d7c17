package controller

import (
	"vision-assistant-be/internal/pkg/apperror"
	"vision-assistant-be/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// currentUser reads the id JwtMiddleware stored for this request.
func currentUser(ctx *fiber.Ctx) (uuid.UUID, error) {
	userID, ok := serverutils.UserID(ctx)
	if !ok {
		return uuid.Nil, apperror.Unauthorized("Unauthorized")
	}
	return userID, nil
}

// parseBody decodes and validates the JSON body into req.
func parseBody(ctx *fiber.Ctx, req interface{}) error {
	if err := ctx.BodyParser(req); err != nil {
		return apperror.Validation("Invalid request body")
	}
	return serverutils.ValidateRequest(req)
}
