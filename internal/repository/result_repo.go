package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/qs3c/quiz_go_server/internal/model"
)

type ResultRepository struct {
	db *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

func (r *ResultRepository) Create(ctx context.Context, result *model.QuizResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

// ListByQuizAndUser 某用户在某测验下的答题记录，最新的在前
func (r *ResultRepository) ListByQuizAndUser(ctx context.Context, quizID, userID int64) ([]*model.QuizResult, error) {
	var results []*model.QuizResult
	err := r.db.WithContext(ctx).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Order("created_at DESC").Order("id DESC").
		Find(&results).Error
	return results, err
}

func (r *ResultRepository) DeleteByQuizID(ctx context.Context, quizID int64) error {
	return r.db.WithContext(ctx).Where("quiz_id = ?", quizID).Delete(&model.QuizResult{}).Error
}
