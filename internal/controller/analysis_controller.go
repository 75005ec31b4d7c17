package controller

import (
	"vision-assistant-be/internal/dto"
	"vision-assistant-be/internal/pkg/serverutils"
	"vision-assistant-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAnalysisController interface {
	RegisterRoutes(r fiber.Router)
	AnalyzeImage(ctx *fiber.Ctx) error
	Chat(ctx *fiber.Ctx) error
}

type analysisController struct {
	service   service.IAnalysisService
	jwtSecret string
}

func NewAnalysisController(service service.IAnalysisService, jwtSecret string) IAnalysisController {
	return &analysisController{service: service, jwtSecret: jwtSecret}
}

func (c *analysisController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/analyse")
	h.Use(serverutils.JwtMiddleware(c.jwtSecret))
	h.Post("/image", c.AnalyzeImage)
	h.Post("/chat", c.Chat)
}

// AnalyzeImage takes a multipart form with the file under "image" and the thread under "threadId".
func (c *analysisController) AnalyzeImage(ctx *fiber.Ctx) error {
	userID, err := currentUser(ctx)
	if err != nil {
		return err
	}

	// A missing file is reported by the service once ownership is settled.
	file, _ := ctx.FormFile("image")

	res, err := c.service.AnalyzeImage(ctx.UserContext(), userID, ctx.FormValue("threadId"), file, nil)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(res)
}

func (c *analysisController) Chat(ctx *fiber.Ctx) error {
	userID, err := currentUser(ctx)
	if err != nil {
		return err
	}

	var req dto.ChatRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}

	res, err := c.service.Ask(ctx.UserContext(), userID, &req, nil)
	if err != nil {
		return err
	}
	return ctx.JSON(fiber.Map{
		"success":  true,
		"content":  res.Content,
		"history":  res.History,
		"threadId": res.ThreadId,
	})
}
