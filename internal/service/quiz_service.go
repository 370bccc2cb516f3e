package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/qs3c/quiz_go_server/config"
	"github.com/qs3c/quiz_go_server/internal/model"
	"github.com/qs3c/quiz_go_server/internal/model/dto"
	"github.com/qs3c/quiz_go_server/internal/pkg/llm"
	"github.com/qs3c/quiz_go_server/internal/pkg/metrics"
	"github.com/qs3c/quiz_go_server/internal/repository"
)

var (
	ErrQuizNotFound     = errors.New("测验不存在")
	ErrQuizPermission   = errors.New("无权操作该测验")
	ErrDocumentNotFound = errors.New("文档不存在")
	ErrGenerationFailed = errors.New("题目生成失败")
	ErrAnswerCount      = errors.New("答案数量与题目数量不一致")
)

// QuestionGenerator 外部出题服务
type QuestionGenerator interface {
	Generate(ctx context.Context, req *llm.GenerateRequest) ([]model.Question, error)
}

type QuizService struct {
	quizRepo     *repository.QuizRepository
	resultRepo   *repository.ResultRepository
	documentRepo *repository.DocumentRepository
	quotaService *QuotaService
	generator    QuestionGenerator
	cfg          *config.Config
	logger       zerolog.Logger
	now          func() time.Time
}

func NewQuizService(
	quizRepo *repository.QuizRepository,
	resultRepo *repository.ResultRepository,
	documentRepo *repository.DocumentRepository,
	quotaService *QuotaService,
	generator QuestionGenerator,
	cfg *config.Config,
	logger zerolog.Logger,
) *QuizService {
	return &QuizService{
		quizRepo:     quizRepo,
		resultRepo:   resultRepo,
		documentRepo: documentRepo,
		quotaService: quotaService,
		generator:    generator,
		cfg:          cfg,
		logger:       logger.With().Str("service", "QuizService").Logger(),
		now:          time.Now,
	}
}

// Create 创建测验：配额检查 -> 调用出题服务 -> 落库
func (s *QuizService) Create(ctx context.Context, userID int64, req *dto.CreateQuizRequest) (*dto.QuizDetail, error) {
	var doc *model.Document
	if req.DocumentID != nil {
		d, err := s.documentRepo.GetByID(ctx, *req.DocumentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrDocumentNotFound
			}
			return nil, err
		}
		if d.UserID != userID {
			return nil, ErrDocumentNotFound
		}
		doc = d
	}
	usesFiles := doc != nil

	status, err := s.quotaService.CheckQuota(ctx, userID, usesFiles, s.now())
	if err != nil {
		return nil, err
	}
	if !status.Allowed {
		return nil, ErrQuotaExceeded
	}

	genReq := &llm.GenerateRequest{
		SubjectsAndTopics: req.SubjectsAndTopics,
		Difficulty:        req.Difficulty,
		QuestionCount:     req.QuestionCount,
		Model:             s.cfg.Generator.Model,
	}
	if doc != nil {
		genReq.DocumentReferenceID = doc.ReferenceID
	}

	started := time.Now()
	questions, err := s.generator.Generate(ctx, genReq)
	if err != nil {
		metrics.ObserveGeneration("error", time.Since(started))
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Question generation failed")
		return nil, ErrGenerationFailed
	}
	metrics.ObserveGeneration("success", time.Since(started))

	quiz := &model.Quiz{
		UserID:            userID,
		Title:             req.Title,
		SubjectsAndTopics: req.SubjectsAndTopics,
		Difficulty:        req.Difficulty,
		QuestionCount:     len(questions),
		HasFiles:          usesFiles,
		Questions:         questions,
	}
	if doc != nil {
		quiz.DocumentID = &doc.ID
	}

	if err := s.quizRepo.Create(ctx, quiz); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", userID).
		Int64("quiz_id", quiz.ID).
		Bool("has_files", usesFiles).
		Int("questions", len(questions)).
		Msg("Quiz created")

	return buildQuizDetail(quiz, true), nil
}

// GetByID 只有创建者可以查看完整测验
func (s *QuizService) GetByID(ctx context.Context, userID, quizID int64) (*dto.QuizDetail, error) {
	quiz, err := s.ownedQuiz(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	return buildQuizDetail(quiz, true), nil
}

// List 分页获取用户的测验
func (s *QuizService) List(ctx context.Context, userID int64, page, pageSize int) ([]*dto.QuizListItem, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	quizzes, total, err := s.quizRepo.ListByUserID(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.QuizListItem, 0, len(quizzes))
	for _, q := range quizzes {
		items = append(items, &dto.QuizListItem{
			ID:            q.ID,
			Title:         q.Title,
			Difficulty:    q.Difficulty,
			QuestionCount: q.QuestionCount,
			HasFiles:      q.HasFiles,
			IsPublic:      q.IsPublic,
			CreatedAt:     q.CreatedAt.Format(time.RFC3339),
		})
	}
	return items, total, nil
}

// Delete 软删除测验并清理答题记录，已用配额不退还
func (s *QuizService) Delete(ctx context.Context, userID, quizID int64) error {
	if _, err := s.ownedQuiz(ctx, userID, quizID); err != nil {
		return err
	}
	if err := s.resultRepo.DeleteByQuizID(ctx, quizID); err != nil {
		return err
	}
	return s.quizRepo.Delete(ctx, quizID)
}

// Share 公开测验，已有分享令牌时复用
func (s *QuizService) Share(ctx context.Context, userID, quizID int64) (*dto.ShareQuizResponse, error) {
	quiz, err := s.ownedQuiz(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	if quiz.ShareToken != nil {
		token = *quiz.ShareToken
	}
	sharedAt := s.now().UTC()

	if err := s.quizRepo.UpdateFields(ctx, quizID, map[string]interface{}{
		"is_public":   true,
		"share_token": token,
		"shared_at":   sharedAt,
	}); err != nil {
		return nil, err
	}

	return &dto.ShareQuizResponse{
		ShareToken: token,
		SharedAt:   sharedAt.Format(time.RFC3339),
	}, nil
}

// Unshare 取消公开，令牌随之失效
func (s *QuizService) Unshare(ctx context.Context, userID, quizID int64) error {
	if _, err := s.ownedQuiz(ctx, userID, quizID); err != nil {
		return err
	}
	return s.quizRepo.UpdateFields(ctx, quizID, map[string]interface{}{
		"is_public":   false,
		"share_token": nil,
		"shared_at":   nil,
	})
}

// GetShared 通过分享令牌获取测验，不含答案
func (s *QuizService) GetShared(ctx context.Context, token string) (*dto.QuizDetail, error) {
	quiz, err := s.quizRepo.GetByShareToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}
	return buildQuizDetail(quiz, false), nil
}

// SubmitAttempt 判分并保存答题记录，创建者或公开测验可作答
func (s *QuizService) SubmitAttempt(ctx context.Context, userID, quizID int64, req *dto.SubmitAttemptRequest) (*dto.QuizResultInfo, error) {
	quiz, err := s.getQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.UserID != userID && !quiz.IsPublic {
		return nil, ErrQuizPermission
	}
	if len(req.Answers) != len(quiz.Questions) {
		return nil, ErrAnswerCount
	}

	correct := make([]bool, len(quiz.Questions))
	score := 0
	for i, q := range quiz.Questions {
		if req.Answers[i] == q.CorrectOptionIndex {
			correct[i] = true
			score++
		}
	}

	result := &model.QuizResult{
		QuizID:  quizID,
		UserID:  userID,
		Answers: req.Answers,
		Correct: correct,
		Score:   score,
		Total:   len(quiz.Questions),
	}
	if err := s.resultRepo.Create(ctx, result); err != nil {
		return nil, err
	}

	return buildResultInfo(result), nil
}

// ListResults 当前用户在该测验上的答题记录
func (s *QuizService) ListResults(ctx context.Context, userID, quizID int64) ([]*dto.QuizResultInfo, error) {
	quiz, err := s.getQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.UserID != userID && !quiz.IsPublic {
		return nil, ErrQuizPermission
	}

	results, err := s.resultRepo.ListByQuizAndUser(ctx, quizID, userID)
	if err != nil {
		return nil, err
	}

	infos := make([]*dto.QuizResultInfo, 0, len(results))
	for _, r := range results {
		infos = append(infos, buildResultInfo(r))
	}
	return infos, nil
}

func (s *QuizService) getQuiz(ctx context.Context, quizID int64) (*model.Quiz, error) {
	quiz, err := s.quizRepo.GetByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}
	return quiz, nil
}

func (s *QuizService) ownedQuiz(ctx context.Context, userID, quizID int64) (*model.Quiz, error) {
	quiz, err := s.getQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.UserID != userID {
		return nil, ErrQuizPermission
	}
	return quiz, nil
}

func buildQuizDetail(quiz *model.Quiz, withAnswers bool) *dto.QuizDetail {
	detail := &dto.QuizDetail{
		ID:                quiz.ID,
		UserID:            quiz.UserID,
		Title:             quiz.Title,
		SubjectsAndTopics: quiz.SubjectsAndTopics,
		Difficulty:        quiz.Difficulty,
		QuestionCount:     quiz.QuestionCount,
		DocumentID:        quiz.DocumentID,
		HasFiles:          quiz.HasFiles,
		IsPublic:          quiz.IsPublic,
		Questions:         make([]*dto.QuestionInfo, 0, len(quiz.Questions)),
		CreatedAt:         quiz.CreatedAt.Format(time.RFC3339),
	}
	if withAnswers && quiz.ShareToken != nil {
		detail.ShareToken = *quiz.ShareToken
	}

	for _, q := range quiz.Questions {
		info := &dto.QuestionInfo{
			ID:      q.ID,
			Text:    q.Text,
			Options: q.Options,
		}
		if withAnswers {
			idx := q.CorrectOptionIndex
			info.CorrectOptionIndex = &idx
			info.Explanation = q.Explanation
		}
		detail.Questions = append(detail.Questions, info)
	}

	return detail
}

func buildResultInfo(r *model.QuizResult) *dto.QuizResultInfo {
	return &dto.QuizResultInfo{
		ID:        r.ID,
		QuizID:    r.QuizID,
		Score:     r.Score,
		Total:     r.Total,
		Answers:   r.Answers,
		Correct:   r.Correct,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
}
