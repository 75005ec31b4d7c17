package serverutils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vision-assistant-be/internal/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newProtectedApp() *fiber.App {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/me", JwtMiddleware(testSecret), func(ctx *fiber.Ctx) error {
		userID, ok := UserID(ctx)
		if !ok {
			return apperror.Unauthorized("no user")
		}
		return ctx.SendString(userID.String())
	})
	return app
}

func TestJwtMiddleware(t *testing.T) {
	app := newProtectedApp()
	userID := uuid.New()

	token, err := IssueToken(testSecret, userID, time.Hour)
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("missing token", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/me", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong secret", func(t *testing.T) {
		forged, err := IssueToken("other-secret", userID, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+forged)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("expired token", func(t *testing.T) {
		expired, err := IssueToken(testSecret, userID, -time.Minute)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+expired)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestParseToken(t *testing.T) {
	userID := uuid.New()
	token, err := IssueToken(testSecret, userID, time.Hour)
	require.NoError(t, err)

	got, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = ParseToken(testSecret, "")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer abc"))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken(""))
}

func TestErrorHandlerMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/missing", func(ctx *fiber.Ctx) error {
		return apperror.NotFound("Thread not found or not authorized")
	})
	app.Get("/boom", func(ctx *fiber.Ctx) error {
		return errors.New("pq: relation does not exist")
	})
	app.Get("/invalid", func(ctx *fiber.Ctx) error {
		return ValidateRequest(struct {
			Email string `validate:"required,email"`
		}{Email: "nope"})
	})

	cases := []struct {
		path    string
		status  int
		message string
	}{
		{"/missing", http.StatusNotFound, "Thread not found or not authorized"},
		{"/boom", http.StatusInternalServerError, "Internal server error"},
		{"/invalid", http.StatusBadRequest, "validation failed: Email is not a valid email"},
	}
	for _, c := range cases {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, c.path, nil))
		require.NoError(t, err)
		assert.Equal(t, c.status, resp.StatusCode, c.path)

		var body BaseResponse[any]
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.False(t, body.Success)
		assert.Equal(t, c.status, body.Code)
		assert.Equal(t, c.message, body.Message)
	}
}
