package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/qs3c/quiz_go_server/config"
	"github.com/qs3c/quiz_go_server/internal/model"
	"github.com/qs3c/quiz_go_server/internal/model/dto"
	"github.com/qs3c/quiz_go_server/internal/pkg/oss"
	"github.com/qs3c/quiz_go_server/internal/repository"
)

var (
	ErrFileTooLarge       = errors.New("文件过大")
	ErrFileTypeNotAllowed = errors.New("不支持的文件类型")
	ErrStorageUnavailable = errors.New("文件存储未配置")
)

// DocumentStorage 文档对象存储
type DocumentStorage interface {
	PutDocument(userID int64, ext string, data []byte) (string, error)
	Delete(objectKey string) error
	SignedURL(objectKey string) (string, error)
}

type DocumentService struct {
	documentRepo *repository.DocumentRepository
	quizRepo     *repository.QuizRepository
	storage      DocumentStorage
	cfg          *config.Config
	logger       zerolog.Logger
}

func NewDocumentService(
	documentRepo *repository.DocumentRepository,
	quizRepo *repository.QuizRepository,
	storage DocumentStorage,
	cfg *config.Config,
	logger zerolog.Logger,
) *DocumentService {
	return &DocumentService{
		documentRepo: documentRepo,
		quizRepo:     quizRepo,
		storage:      storage,
		cfg:          cfg,
		logger:       logger.With().Str("service", "DocumentService").Logger(),
	}
}

// Upload 校验并保存文档，object key 作为出题时的参考 ID
func (s *DocumentService) Upload(ctx context.Context, userID int64, fileName string, file io.Reader) (*dto.DocumentInfo, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if !s.extensionAllowed(ext) {
		return nil, ErrFileTypeNotAllowed
	}

	// 多读一个字节用于判断是否超限
	maxSize := s.cfg.Upload.MaxSize
	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, ErrFileTooLarge
	}

	objectKey, err := s.storage.PutDocument(userID, ext, data)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{
		UserID:      userID,
		FileName:    filepath.Base(fileName),
		ReferenceID: objectKey,
		ContentType: oss.ContentType(ext),
		SizeBytes:   int64(len(data)),
	}
	if err := s.documentRepo.Create(ctx, doc); err != nil {
		if delErr := s.storage.Delete(objectKey); delErr != nil {
			s.logger.Warn().Err(delErr).Str("object_key", objectKey).Msg("Failed to remove orphaned document")
		}
		return nil, err
	}

	return s.buildDocumentInfo(doc), nil
}

// List 用户的全部文档
func (s *DocumentService) List(ctx context.Context, userID int64) ([]*dto.DocumentInfo, error) {
	docs, err := s.documentRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	infos := make([]*dto.DocumentInfo, 0, len(docs))
	for _, d := range docs {
		infos = append(infos, s.buildDocumentInfo(d))
	}
	return infos, nil
}

// Delete 删除文档记录和对象，已生成的测验保留
func (s *DocumentService) Delete(ctx context.Context, userID, documentID int64) error {
	doc, err := s.documentRepo.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}
	if doc.UserID != userID {
		return ErrDocumentNotFound
	}

	if err := s.quizRepo.ClearDocument(ctx, documentID); err != nil {
		return err
	}
	if err := s.documentRepo.Delete(ctx, documentID); err != nil {
		return err
	}

	if s.storage != nil {
		if err := s.storage.Delete(doc.ReferenceID); err != nil {
			s.logger.Warn().Err(err).Str("object_key", doc.ReferenceID).Msg("Failed to delete document object")
		}
	}
	return nil
}

// orphanBatchSize 单次清理查询的文档数
const orphanBatchSize = 100

// PurgeOrphans 删除创建早于 now-retention 且不被任何测验引用的文档，返回删除数量
func (s *DocumentService) PurgeOrphans(ctx context.Context, now time.Time, retention time.Duration) (int, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := now.Add(-retention)

	purged := 0
	for {
		docs, err := s.documentRepo.ListOrphansBefore(ctx, cutoff, orphanBatchSize)
		if err != nil {
			return purged, err
		}

		for _, doc := range docs {
			if err := s.documentRepo.Delete(ctx, doc.ID); err != nil {
				return purged, err
			}
			purged++

			if s.storage != nil {
				if err := s.storage.Delete(doc.ReferenceID); err != nil {
					s.logger.Warn().Err(err).Str("object_key", doc.ReferenceID).Msg("Failed to delete orphan document object")
				}
			}
		}

		if len(docs) < orphanBatchSize {
			return purged, nil
		}
	}
}

func (s *DocumentService) extensionAllowed(ext string) bool {
	for _, allowed := range s.cfg.Upload.AllowedExtensions {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}

func (s *DocumentService) buildDocumentInfo(doc *model.Document) *dto.DocumentInfo {
	info := &dto.DocumentInfo{
		ID:          doc.ID,
		FileName:    doc.FileName,
		ContentType: doc.ContentType,
		SizeBytes:   doc.SizeBytes,
		CreatedAt:   doc.CreatedAt.Format(time.RFC3339),
	}

	if s.storage != nil {
		url, err := s.storage.SignedURL(doc.ReferenceID)
		if err != nil {
			s.logger.Warn().Err(err).Int64("document_id", doc.ID).Msg("Failed to sign document URL")
		} else {
			info.URL = url
		}
	}
	return info
}
