package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"vision-assistant-be/internal/dto"
	"vision-assistant-be/internal/entity"
	"vision-assistant-be/internal/pkg/apperror"
	"vision-assistant-be/internal/pkg/logger"
	"vision-assistant-be/internal/pkg/mailer"
	"vision-assistant-be/internal/pkg/serverutils"
	"vision-assistant-be/internal/repository/specification"
	"vision-assistant-be/internal/repository/unitofwork"
	"vision-assistant-be/pkg/events"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const authModule = "AUTH"

type IAuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error)
	VerifyEmail(ctx context.Context, req *dto.VerifyEmailRequest) error
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
	Profile(ctx context.Context, userID uuid.UUID) (*dto.UserProfileResponse, error)
}

type AuthConfig struct {
	JWTSecret string
	JWTTTL    time.Duration
}

type authService struct {
	uowFactory   unitofwork.RepositoryFactory
	emailService mailer.IEmailService
	publisher    IPublisherService
	logger       logger.ILogger
	cfg          AuthConfig
}

func NewAuthService(
	uowFactory unitofwork.RepositoryFactory,
	emailService mailer.IEmailService,
	publisher IPublisherService,
	log logger.ILogger,
	cfg AuthConfig,
) IAuthService {
	return &authService{
		uowFactory:   uowFactory,
		emailService: emailService,
		publisher:    publisher,
		logger:       log,
		cfg:          cfg,
	}
}

func generateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	email := normalizeEmail(req.Email)
	uow := s.uowFactory.NewUnitOfWork(ctx)

	existing, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: email})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if existing != nil {
		return nil, apperror.Conflict("User already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	code, err := generateVerificationCode()
	if err != nil {
		return nil, apperror.Internal(err)
	}

	user := &entity.User{
		Id:               uuid.New(),
		Email:            email,
		PasswordHash:     string(hash),
		VerificationCode: code,
	}
	if err := uow.UserRepository().Create(ctx, user); err != nil {
		return nil, apperror.Internal(fmt.Errorf("create user: %w", err))
	}

	go func() {
		if err := s.emailService.SendVerificationCode(user.Email, code); err != nil {
			s.logger.Warn(authModule, "Failed to send verification email", map[string]interface{}{
				"user_id": user.Id.String(),
				"error":   err.Error(),
			})
		}
	}()

	publishQuietly(ctx, s.publisher, s.logger, events.UserRegistered, map[string]interface{}{
		"userId": user.Id.String(),
		"email":  user.Email,
	})

	return &dto.RegisterResponse{Id: user.Id, Email: user.Email}, nil
}

func (s *authService) VerifyEmail(ctx context.Context, req *dto.VerifyEmailRequest) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: normalizeEmail(req.Email)})
	if err != nil {
		return apperror.Internal(err)
	}
	if user == nil {
		return apperror.NotFound("User not found")
	}
	if user.IsVerified {
		return nil
	}
	if user.VerificationCode == "" || user.VerificationCode != req.Code {
		return apperror.Validation("Invalid verification code")
	}

	now := time.Now().UTC()
	user.IsVerified = true
	user.VerifiedAt = &now
	user.VerificationCode = ""
	if err := uow.UserRepository().Update(ctx, user); err != nil {
		return apperror.Internal(fmt.Errorf("verify user: %w", err))
	}
	return nil
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: normalizeEmail(req.Email)})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if user == nil {
		return nil, apperror.Unauthorized("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperror.Unauthorized("Invalid credentials")
	}

	token, err := serverutils.IssueToken(s.cfg.JWTSecret, user.Id, s.cfg.JWTTTL)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("sign token: %w", err))
	}

	return &dto.LoginResponse{
		UserId: user.Id,
		Email:  user.Email,
		Token:  token,
	}, nil
}

func (s *authService) Profile(ctx context.Context, userID uuid.UUID) (*dto.UserProfileResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userID})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if user == nil {
		return nil, apperror.NotFound("User not found")
	}
	return &dto.UserProfileResponse{
		Id:         user.Id,
		Email:      user.Email,
		IsVerified: user.IsVerified,
		CreatedAt:  user.CreatedAt,
	}, nil
}
