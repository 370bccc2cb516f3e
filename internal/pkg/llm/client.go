package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/qs3c/quiz_go_server/config"
	"github.com/qs3c/quiz_go_server/internal/model"
)

var (
	ErrUpstream          = errors.New("question generator returned an error")
	ErrMalformedResponse = errors.New("question generator returned malformed output")
	ErrNotConfigured     = errors.New("question generator base url is not configured")
)

// maxErrorBody 上游错误信息最多记录的字节数
const maxErrorBody = 4 << 10

// GenerateRequest 出题请求
type GenerateRequest struct {
	SubjectsAndTopics   string `json:"subjectsAndTopics"`
	Difficulty          string `json:"difficulty"`
	QuestionCount       int    `json:"questionCount"`
	DocumentReferenceID string `json:"documentReferenceId,omitempty"`
	Model               string `json:"model,omitempty"`
}

type generatedQuestion struct {
	ID                 string   `json:"id"`
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectOptionIndex *int     `json:"correctOptionIndex"`
	Explanation        string   `json:"explanation,omitempty"`
}

type generateResponse struct {
	Questions []generatedQuestion `json:"questions"`
}

// Client 题目生成服务客户端，不做重试
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  zerolog.Logger
}

func NewClient(cfg config.GeneratorConfig, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("service", "GeneratorClient").Logger(),
	}
}

// Generate 调用生成服务并校验输出，任何不合法的题目都视为整体失败
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) ([]model.Question, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	body := *req
	if body.Model == "" {
		body.Model = c.model
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/quizzes/generate", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Error().
			Int("status_code", resp.StatusCode).
			Str("error_body", string(errBody)).
			Msg("Generator returned error")
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return toQuestions(out.Questions, req.QuestionCount)
}

func toQuestions(in []generatedQuestion, want int) ([]model.Question, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: no questions", ErrMalformedResponse)
	}
	if want > 0 && len(in) > want {
		in = in[:want]
	}

	questions := make([]model.Question, 0, len(in))
	for i, q := range in {
		if strings.TrimSpace(q.Text) == "" {
			return nil, fmt.Errorf("%w: question %d has no text", ErrMalformedResponse, i)
		}
		if len(q.Options) < 2 {
			return nil, fmt.Errorf("%w: question %d has %d options", ErrMalformedResponse, i, len(q.Options))
		}
		if q.CorrectOptionIndex == nil || *q.CorrectOptionIndex < 0 || *q.CorrectOptionIndex >= len(q.Options) {
			return nil, fmt.Errorf("%w: question %d has no valid correct option", ErrMalformedResponse, i)
		}

		id := q.ID
		if id == "" {
			id = uuid.NewString()
		}
		questions = append(questions, model.Question{
			ID:                 id,
			Text:               q.Text,
			Options:            q.Options,
			CorrectOptionIndex: *q.CorrectOptionIndex,
			Explanation:        q.Explanation,
		})
	}
	return questions, nil
}
