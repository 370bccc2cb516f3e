package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/quiz_go_server/config"
	"github.com/qs3c/quiz_go_server/internal/api/middleware"
	"github.com/qs3c/quiz_go_server/internal/model"
	"github.com/qs3c/quiz_go_server/internal/pkg/llm"
	"github.com/qs3c/quiz_go_server/internal/pkg/pubsub"
	"github.com/qs3c/quiz_go_server/internal/pkg/response"
	"github.com/qs3c/quiz_go_server/internal/repository"
	"github.com/qs3c/quiz_go_server/internal/service"
	"github.com/qs3c/quiz_go_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testJWTSecret     = "test-secret-key"
	testWebhookSecret = "whsec_test"
)

type stubGenerator struct {
	err error
}

func (g *stubGenerator) Generate(_ context.Context, req *llm.GenerateRequest) ([]model.Question, error) {
	if g.err != nil {
		return nil, g.err
	}
	questions := make([]model.Question, req.QuestionCount)
	for i := range questions {
		questions[i] = model.Question{
			ID:                 fmt.Sprintf("q%d", i+1),
			Text:               "question",
			Options:            []string{"A", "B"},
			CorrectOptionIndex: 0,
		}
	}
	return questions, nil
}

type stubStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *stubStorage) PutDocument(userID int64, ext string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("documents/%d/%d%s", userID, len(s.objects)+1, ext)
	s.objects[key] = data
	return key, nil
}

func (s *stubStorage) Delete(objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectKey)
	return nil
}

func (s *stubStorage) SignedURL(objectKey string) (string, error) {
	return "https://cdn.example.com/" + objectKey, nil
}

type stubNotifier struct {
	mu       sync.Mutex
	messages []*pubsub.StatusMessage
}

func (n *stubNotifier) PublishSubscriptionStatus(_ context.Context, msg *pubsub.StatusMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

// testEnv 真实的 service 与仓储，外部依赖用桩替代
type testEnv struct {
	db        *gorm.DB
	cfg       *config.Config
	generator *stubGenerator
	storage   *stubStorage
	notifier  *stubNotifier

	authService         *service.AuthService
	userService         *service.UserService
	quotaService        *service.QuotaService
	subscriptionService *service.SubscriptionService
	quizService         *service.QuizService
	documentService     *service.DocumentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	cfg := &config.Config{
		JWT:     config.JWTConfig{Secret: testJWTSecret, ExpireHours: 24},
		Billing: config.BillingConfig{WebhookSecret: testWebhookSecret},
		Upload:  config.UploadConfig{MaxSize: 1 << 20, AllowedExtensions: []string{".pdf", ".txt"}},
	}
	logger := zerolog.Nop()

	userRepo := repository.NewUserRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	resultRepo := repository.NewResultRepository(db)
	documentRepo := repository.NewDocumentRepository(db)

	env := &testEnv{
		db:        db,
		cfg:       cfg,
		generator: &stubGenerator{},
		storage:   &stubStorage{objects: map[string][]byte{}},
		notifier:  &stubNotifier{},
	}

	env.authService = service.NewAuthService(userRepo, subRepo, cfg)
	env.userService = service.NewUserService(userRepo, subRepo)
	env.quotaService = service.NewQuotaService(subRepo, quizRepo, cfg, logger)
	env.subscriptionService = service.NewSubscriptionService(subRepo, userRepo, env.notifier, logger)
	env.quizService = service.NewQuizService(quizRepo, resultRepo, documentRepo, env.quotaService, env.generator, cfg, logger)
	env.documentService = service.NewDocumentService(documentRepo, quizRepo, env.storage, cfg, logger)

	return env
}

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

// decodeData 把响应中的 data 解码为具体类型
func decodeData(t *testing.T, resp response.Response, dest interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dest))
}

// mockAuth 模拟认证中间件
func mockAuth(userID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	}
}
