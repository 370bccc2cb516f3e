package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/quiz_go_server/internal/model"
)

type QuizRepository struct {
	db *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

func (r *QuizRepository) Create(ctx context.Context, quiz *model.Quiz) error {
	return r.db.WithContext(ctx).Create(quiz).Error
}

func (r *QuizRepository) GetByID(ctx context.Context, id int64) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&quiz).Error
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

// GetByShareToken 只返回仍处于公开状态的测验
func (r *QuizRepository) GetByShareToken(ctx context.Context, token string) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.db.WithContext(ctx).Where("share_token = ? AND is_public = ?", token, true).First(&quiz).Error
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *QuizRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Quiz{}).Where("id = ?", id).Updates(fields).Error
}

func (r *QuizRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Quiz{}, id).Error
}

// ListByUserID 获取用户的测验列表
func (r *QuizRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Quiz, int64, error) {
	var quizzes []*model.Quiz
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Quiz{}).Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(pageSize).Find(&quizzes).Error; err != nil {
		return nil, 0, err
	}

	return quizzes, total, nil
}

// CountInRange 统计 [start, end) 内创建的测验数，按是否使用文档分区，已删除的也计入
func (r *QuizRepository) CountInRange(ctx context.Context, userID int64, start, end time.Time, hasFiles bool) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&model.Quiz{}).
		Where("user_id = ? AND has_files = ?", userID, hasFiles).
		Where("created_at >= ? AND created_at < ?", start.UTC(), end.UTC()).
		Count(&count).Error
	return count, err
}

// ClearDocument 文档删除后解除关联，测验本身保留且仍计入文档配额
func (r *QuizRepository) ClearDocument(ctx context.Context, documentID int64) error {
	return r.db.WithContext(ctx).Unscoped().Model(&model.Quiz{}).
		Where("document_id = ?", documentID).
		Update("document_id", nil).Error
}
