package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"vision-assistant-be/internal/dto"
	"vision-assistant-be/internal/pkg/apperror"
	"vision-assistant-be/internal/pkg/logger"
	"vision-assistant-be/internal/pkg/serverutils"
	"vision-assistant-be/internal/repository/specification"
	"vision-assistant-be/internal/repository/unitofwork"
	"vision-assistant-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *capturingMailer) SendVerificationCode(toEmail, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[toEmail] = code
	return nil
}

func newAuthEnv(t *testing.T) (IAuthService, unitofwork.RepositoryFactory, *recordingPublisher) {
	factory := unitofwork.NewRepositoryFactory(openTestDB(t))
	pub := &recordingPublisher{}
	svc := NewAuthService(factory, &capturingMailer{codes: map[string]string{}}, pub, logger.NewNopLogger(), AuthConfig{
		JWTSecret: "secret",
		JWTTTL:    time.Hour,
	})
	return svc, factory, pub
}

func TestAuth_RegisterVerifyLogin(t *testing.T) {
	svc, factory, pub := newAuthEnv(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, &dto.RegisterRequest{Email: " Ana@Example.com ", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", reg.Email)
	assert.Equal(t, []string{events.UserRegistered}, pub.types())

	_, err = svc.Register(ctx, &dto.RegisterRequest{Email: "ana@example.com", Password: "other"})
	assert.True(t, apperror.Is(err, apperror.KindConflict))
	assert.Equal(t, "User already exists", apperror.PublicMessage(err))

	uow := factory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: "ana@example.com"})
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NotEqual(t, "hunter22", user.PasswordHash)
	assert.Len(t, user.VerificationCode, 6)

	err = svc.VerifyEmail(ctx, &dto.VerifyEmailRequest{Email: "ana@example.com", Code: "000000x"})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	require.NoError(t, svc.VerifyEmail(ctx, &dto.VerifyEmailRequest{Email: "ana@example.com", Code: user.VerificationCode}))

	_, err = svc.Login(ctx, &dto.LoginRequest{Email: "ana@example.com", Password: "wrong"})
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))

	login, err := svc.Login(ctx, &dto.LoginRequest{Email: "ana@example.com", Password: "hunter22"})
	require.NoError(t, err)
	userID, err := serverutils.ParseToken("secret", login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.Id, userID)

	profile, err := svc.Profile(ctx, userID)
	require.NoError(t, err)
	assert.True(t, profile.IsVerified)
	assert.Equal(t, "ana@example.com", profile.Email)
}

func TestAuth_LoginUnknownUser(t *testing.T) {
	svc, _, _ := newAuthEnv(t)
	_, err := svc.Login(context.Background(), &dto.LoginRequest{Email: "nobody@example.com", Password: "x"})
	assert.True(t, apperror.Is(err, apperror.KindUnauthorized))
}
