package controller

import (
	"vision-assistant-be/internal/dto"
	"vision-assistant-be/internal/pkg/apperror"
	"vision-assistant-be/internal/pkg/serverutils"
	"vision-assistant-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Start(ctx *fiber.Ctx) error
	End(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Details(ctx *fiber.Ctx) error
	Messages(ctx *fiber.Ctx) error
	FullData(ctx *fiber.Ctx) error
	SaveDetection(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type sessionController struct {
	service   service.IThreadService
	jwtSecret string
}

func NewSessionController(service service.IThreadService, jwtSecret string) ISessionController {
	return &sessionController{service: service, jwtSecret: jwtSecret}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/session")
	h.Use(serverutils.JwtMiddleware(c.jwtSecret))
	h.Post("/start", c.Start)
	h.Post("/end", c.End)
	h.Get("/list", c.List)
	h.Get("/details/:threadId", c.Details)
	h.Get("/messages/:threadId", c.Messages)
	h.Get("/full-data/:threadId", c.FullData)
	h.Post("/save-detection", c.SaveDetection)
	h.Delete("/delete", c.Delete)
}

func (c *sessionController) Start(ctx *fiber.Ctx) error {
	userID, err := currentUser(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.CreateSession(ctx.UserContext(), userID)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(res)
}

func (c *sessionController) End(ctx *fiber.Ctx) error {
	userID, err := currentUser(ctx)
	if err != nil {
		return err
	}

	var req dto.ThreadRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}
	if req.ID() == "" {
		return apperror.Validation("Thread ID is required")
	}

	if err := c.service.EndSession(ctx.UserContext(), req.ID(), userID); err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"message": "Session ended successfully",
	})
}

func (c *sessionController) List(ctx *fiber.Ctx) error {
	userID, err := currentUser(ctx)
	if err != nil {
		return err
	}

	sessions, err := c.service.ListSessions(ctx.UserContext(), userID)
	if err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{
		"success":  true,
		"sessions": sessions,
	})
}

func (c *sessionController) Details(ctx *fiber.Ctx) error {
	userID, err := currentUser(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetSessionDetails(ctx.UserContext(), ctx.Params("threadId"), userID)
	if err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"session": res.Session,
		"preview": res.Preview,
	})
}

func (c *sessionController) Messages(ctx *fiber.Ctx) error {
	userID, err := currentUser(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetSessionMessages(ctx.UserContext(), ctx.Params("threadId"), userID)
	if err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{
		"success":    true,
		"threadId":   res.ThreadId,
		"messages":   res.Messages,
		"detections": res.Detections,
	})
}

func (c *sessionController) FullData(ctx *fiber.Ctx) error {
	userID, err := currentUser(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetTimeline(ctx.UserContext(), ctx.Params("threadId"), userID)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Session data loaded", res))
}

func (c *sessionController) SaveDetection(ctx *fiber.Ctx) error {
	userID, err := currentUser(ctx)
	if err != nil {
		return err
	}

	var req dto.SaveDetectionRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}

	res, err := c.service.SaveDetection(ctx.UserContext(), req.ThreadId, userID, req.DetectionData)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Detection saved", res))
}

func (c *sessionController) Delete(ctx *fiber.Ctx) error {
	userID, err := currentUser(ctx)
	if err != nil {
		return err
	}

	var req dto.ThreadRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}
	if req.ID() == "" {
		return apperror.Validation("Thread ID is required")
	}

	if err := c.service.DeleteSession(ctx.UserContext(), req.ID(), userID); err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"message": "Session deleted successfully",
	})
}
