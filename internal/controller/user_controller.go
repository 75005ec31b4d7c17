package controller

import (
	"vision-assistant-be/internal/dto"
	"vision-assistant-be/internal/pkg/serverutils"
	"vision-assistant-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IUserController interface {
	RegisterRoutes(r fiber.Router)
	Register(ctx *fiber.Ctx) error
	VerifyEmail(ctx *fiber.Ctx) error
	Login(ctx *fiber.Ctx) error
	Profile(ctx *fiber.Ctx) error
}

type userController struct {
	service   service.IAuthService
	jwtSecret string
}

func NewUserController(service service.IAuthService, jwtSecret string) IUserController {
	return &userController{service: service, jwtSecret: jwtSecret}
}

func (c *userController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/user")
	h.Post("/register", c.Register)
	h.Post("/verify", c.VerifyEmail)
	h.Post("/login", c.Login)
	h.Get("/profile", serverutils.JwtMiddleware(c.jwtSecret), c.Profile)
}

func (c *userController) Register(ctx *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}

	res, err := c.service.Register(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("User registered successfully. Check your email for the verification code.", res))
}

func (c *userController) VerifyEmail(ctx *fiber.Ctx) error {
	var req dto.VerifyEmailRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}

	if err := c.service.VerifyEmail(ctx.UserContext(), &req); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Email verified successfully", nil))
}

func (c *userController) Login(ctx *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}

	res, err := c.service.Login(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Login successful", res))
}

func (c *userController) Profile(ctx *fiber.Ctx) error {
	userID, err := currentUser(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Profile(ctx.UserContext(), userID)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get profile", res))
}
