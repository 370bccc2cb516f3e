package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/quiz_go_server/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.Document, error) {
	var docs []*model.Document
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC").Find(&docs).Error
	return docs, err
}

func (r *DocumentRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Document{}, id).Error
}

// ListOrphansBefore 早于 cutoff 且没有任何测验（含已删除）引用的文档
func (r *DocumentRepository) ListOrphansBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Document, error) {
	referenced := r.db.Unscoped().Model(&model.Quiz{}).
		Select("1").
		Where("quizzes.document_id = documents.id")

	var docs []*model.Document
	err := r.db.WithContext(ctx).
		Where("documents.created_at < ?", cutoff.UTC()).
		Where("NOT EXISTS (?)", referenced).
		Order("documents.id").
		Limit(limit).
		Find(&docs).Error
	return docs, err
}
