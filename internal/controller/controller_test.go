package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"vision-assistant-be/internal/model"
	"vision-assistant-be/internal/pkg/logger"
	"vision-assistant-be/internal/pkg/serverutils"
	"vision-assistant-be/internal/repository/memory"
	"vision-assistant-be/internal/repository/unitofwork"
	"vision-assistant-be/internal/service"
	"vision-assistant-be/pkg/assistant/assistanttest"
	"vision-assistant-be/pkg/llm"
	"vision-assistant-be/pkg/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testSecret = "controller-secret"

type stubVision struct {
	description string
}

func (s stubVision) DescribeImage(ctx context.Context, image llm.Image, prompt string, options ...llm.Option) (string, error) {
	return s.description, nil
}

type nopMailer struct {
	mu   sync.Mutex
	code string
}

func (m *nopMailer) SendVerificationCode(toEmail, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.code = code
	return nil
}

func newTestApp(t *testing.T, reply string) *fiber.App {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(model.All()...))

	factory := unitofwork.NewRepositoryFactory(db)
	log := logger.NewNopLogger()
	threads := service.NewThreadService(
		factory,
		assistanttest.New(reply),
		memory.NewRunLockRepository(time.Minute),
		nil,
		nil,
		log,
		service.ThreadServiceConfig{AssistantID: "asst_test", PollInterval: time.Millisecond},
	)
	store := storage.NewLocalImageStore(t.TempDir(), "http://localhost:3000/uploads", 1<<20)
	analysis := service.NewAnalysisService(threads, store, stubVision{description: "A red bicycle."}, "Describe", log)
	auth := service.NewAuthService(factory, &nopMailer{}, nil, log, service.AuthConfig{JWTSecret: testSecret, JWTTTL: time.Hour})

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	api := app.Group("/api/v1")
	NewUserController(auth, testSecret).RegisterRoutes(api)
	NewSessionController(threads, testSecret).RegisterRoutes(api)
	NewAnalysisController(analysis, testSecret).RegisterRoutes(api)
	return app
}

func tokenFor(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := serverutils.IssueToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return send(t, app, req)
}

func send(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func startSession(t *testing.T, app *fiber.App, token string) string {
	t.Helper()
	status, body := doJSON(t, app, http.MethodPost, "/api/v1/session/start", token, nil)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["created_at"])
	threadID, _ := body["threadId"].(string)
	require.NotEmpty(t, threadID)
	return threadID
}

func TestSessionRoutes_RequireToken(t *testing.T) {
	app := newTestApp(t, "x")
	status, body := doJSON(t, app, http.MethodPost, "/api/v1/session/start", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])
}

func TestSessionLifecycle(t *testing.T) {
	app := newTestApp(t, "It looks like a park.")
	owner := uuid.New()
	token := tokenFor(t, owner)
	threadID := startSession(t, app, token)

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/analyse/chat", token, map[string]interface{}{
		"threadId": threadID,
		"message":  "Where is this?",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "It looks like a park.", body["content"])
	assert.Len(t, body["history"], 2)

	status, body = doJSON(t, app, http.MethodPost, "/api/v1/session/save-detection", token, map[string]interface{}{
		"threadId":      threadID,
		"detectionData": map[string]interface{}{"label": "bench"},
	})
	require.Equal(t, http.StatusOK, status, body)

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/session/messages/"+threadID, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, threadID, body["threadId"])
	assert.Len(t, body["messages"], 2)
	assert.Len(t, body["detections"], 1)

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/session/details/"+threadID, token, nil)
	require.Equal(t, http.StatusOK, status)
	session := body["session"].(map[string]interface{})
	assert.Equal(t, "Where is this?", session["title"])
	assert.EqualValues(t, 2, session["messageCount"])
	assert.EqualValues(t, 1, session["detectionCount"])

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/session/full-data/"+threadID, token, nil)
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]interface{})
	assert.Len(t, data["timeline"], 3)

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/session/list", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["sessions"], 1)

	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/session/end", token, map[string]string{"threadId": threadID})
	assert.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, app, http.MethodDelete, "/api/v1/session/delete", token, map[string]string{"threadID": threadID})
	assert.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/session/details/"+threadID, token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSessionRoutes_OwnershipGate(t *testing.T) {
	app := newTestApp(t, "x")
	threadID := startSession(t, app, tokenFor(t, uuid.New()))
	intruder := tokenFor(t, uuid.New())

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/session/messages/"+threadID, intruder, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Thread not found or not authorized", body["message"])

	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/session/end", intruder, map[string]string{"threadId": threadID})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/session/end", intruder, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func multipartRequest(t *testing.T, token, threadID string, filename string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("threadId", threadID))
	if filename != "" {
		part, err := w.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyse/image", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAnalyzeImage(t *testing.T) {
	app := newTestApp(t, "The bicycle is parked by a wall.")
	token := tokenFor(t, uuid.New())
	threadID := startSession(t, app, token)

	status, body := send(t, app, multipartRequest(t, token, threadID, "bike.png", []byte("\x89PNG\r\n\x1a\npixels")))
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, threadID, body["threadId"])
	assert.True(t, strings.HasPrefix(body["url"].(string), "http://localhost:3000/uploads/"))

	data := body["data"].([]interface{})
	require.Len(t, data, 2)
	newest := data[0].(map[string]interface{})
	assert.Equal(t, "assistant", newest["role"])
	assert.Equal(t, "The bicycle is parked by a wall.", newest["content"])
	assert.NotEmpty(t, newest["id"])
}

func TestAnalyzeImage_MissingFile(t *testing.T) {
	app := newTestApp(t, "x")
	token := tokenFor(t, uuid.New())
	threadID := startSession(t, app, token)

	status, body := send(t, app, multipartRequest(t, token, threadID, "", nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Image not found", body["message"])
}

func TestUserRoutes(t *testing.T) {
	app := newTestApp(t, "x")

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/user/register", "", map[string]string{
		"email":    "lee@example.com",
		"password": "s3cret!",
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "lee@example.com", body["data"].(map[string]interface{})["email"])

	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/user/register", "", map[string]string{
		"email":    "not-an-email",
		"password": "s3cret!",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = doJSON(t, app, http.MethodPost, "/api/v1/user/login", "", map[string]string{
		"email":    "lee@example.com",
		"password": "s3cret!",
	})
	require.Equal(t, http.StatusOK, status, body)
	token, _ := body["data"].(map[string]interface{})["token"].(string)
	require.NotEmpty(t, token)

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/user/profile", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "lee@example.com", body["data"].(map[string]interface{})["email"])
	assert.Equal(t, false, body["data"].(map[string]interface{})["isVerified"])

	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/user/login", "", map[string]string{
		"email":    "lee@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}
