package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/quiz_go_server/config"
	"github.com/qs3c/quiz_go_server/internal/api/handler"
	"github.com/qs3c/quiz_go_server/internal/model"
	"github.com/qs3c/quiz_go_server/internal/model/dto"
	"github.com/qs3c/quiz_go_server/internal/pkg/billing"
	"github.com/qs3c/quiz_go_server/internal/pkg/llm"
	"github.com/qs3c/quiz_go_server/internal/pkg/pubsub"
	"github.com/qs3c/quiz_go_server/internal/pkg/response"
	"github.com/qs3c/quiz_go_server/internal/pkg/ws"
	"github.com/qs3c/quiz_go_server/internal/repository"
	"github.com/qs3c/quiz_go_server/internal/service"
	"github.com/qs3c/quiz_go_server/internal/testutil"
)

type fixedGenerator struct{}

func (fixedGenerator) Generate(_ context.Context, req *llm.GenerateRequest) ([]model.Question, error) {
	questions := make([]model.Question, req.QuestionCount)
	for i := range questions {
		questions[i] = model.Question{ID: fmt.Sprintf("q%d", i+1), Text: "?", Options: []string{"a", "b"}}
	}
	return questions, nil
}

type discardNotifier struct{}

func (discardNotifier) PublishSubscriptionStatus(context.Context, *pubsub.StatusMessage) error {
	return nil
}

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	cfg := &config.Config{
		Server:  config.ServerConfig{Mode: "test"},
		JWT:     config.JWTConfig{Secret: "router-secret", ExpireHours: 1},
		Billing: config.BillingConfig{WebhookSecret: "whsec_router"},
		Upload:  config.UploadConfig{MaxSize: 1 << 20, AllowedExtensions: []string{".txt"}},
	}
	logger := zerolog.Nop()

	userRepo := repository.NewUserRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	resultRepo := repository.NewResultRepository(db)
	documentRepo := repository.NewDocumentRepository(db)

	quotaService := service.NewQuotaService(subRepo, quizRepo, cfg, logger)
	subscriptionService := service.NewSubscriptionService(subRepo, userRepo, discardNotifier{}, logger)
	quizService := service.NewQuizService(quizRepo, resultRepo, documentRepo, quotaService, fixedGenerator{}, cfg, logger)
	documentService := service.NewDocumentService(documentRepo, quizRepo, nil, cfg, logger)

	handlers := Handlers{
		Auth:         handler.NewAuthHandler(service.NewAuthService(userRepo, subRepo, cfg)),
		User:         handler.NewUserHandler(service.NewUserService(userRepo, subRepo)),
		Quota:        handler.NewQuotaHandler(quotaService),
		Subscription: handler.NewSubscriptionHandler(subscriptionService),
		Webhook:      handler.NewWebhookHandler(subscriptionService, billing.NewVerifier(cfg.Billing.WebhookSecret, 0), logger),
		Quiz:         handler.NewQuizHandler(quizService),
		Document:     handler.NewDocumentHandler(documentService),
		WebSocket:    handler.NewWebSocketHandler(ws.NewHub(logger), cfg.JWT.Secret, nil, logger),
	}

	return NewRouter(handlers, quotaService, cfg, logger).Setup()
}

func doJSON(router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	if data != nil && resp.Data != nil {
		raw, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, data))
	}
	return resp
}

func TestRouter_Health(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(router, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestRouter_RequiresAuth(t *testing.T) {
	router := setupTestRouter(t)

	for _, path := range []string{"/api/v1/user/profile", "/api/v1/user/quota", "/api/v1/subscription", "/api/v1/quizzes", "/api/v1/documents"} {
		resp := decode(t, doJSON(router, http.MethodGet, path, "", nil), nil)
		assert.Equal(t, response.CodeAuthFailed, resp.Code, path)
	}
}

func TestRouter_RegisterLoginCreateQuiz(t *testing.T) {
	router := setupTestRouter(t)

	resp := decode(t, doJSON(router, http.MethodPost, "/api/v1/auth/register", "", dto.RegisterRequest{
		Username: "learner",
		Email:    "Learner@Example.com",
		Password: "password123",
	}), nil)
	require.Equal(t, response.CodeSuccess, resp.Code)

	var login dto.LoginResponse
	resp = decode(t, doJSON(router, http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{
		Email:    "learner@example.com",
		Password: "password123",
	}), &login)
	require.Equal(t, response.CodeSuccess, resp.Code)
	require.NotEmpty(t, login.Token)
	assert.False(t, login.User.IsPremium)

	var detail dto.QuizDetail
	resp = decode(t, doJSON(router, http.MethodPost, "/api/v1/quizzes", login.Token, dto.CreateQuizRequest{
		Title:             "Fractions",
		SubjectsAndTopics: "math: fractions",
		Difficulty:        "medium",
		QuestionCount:     3,
	}), &detail)
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Len(t, detail.Questions, 3)

	var quota dto.QuotaInfo
	resp = decode(t, doJSON(router, http.MethodGet, "/api/v1/user/quota", login.Token, nil), &quota)
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, 1, quota.WithoutFiles.Used)
}

func TestRouter_WebhookAlwaysAcknowledges(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/billing", bytes.NewBufferString(`{"event_type":"subscription.activated"}`))
	req.Header.Set(billing.SignatureHeader, "ts=1;h1=deadbeef")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
