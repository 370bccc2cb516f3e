package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/quiz_go_server/config"
	"github.com/qs3c/quiz_go_server/internal/model"
	"github.com/qs3c/quiz_go_server/internal/repository"
	"github.com/qs3c/quiz_go_server/internal/testutil"
)

type memoryStorage struct {
	objects map[string][]byte
	putErr  error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}}
}

func (m *memoryStorage) PutDocument(userID int64, ext string, data []byte) (string, error) {
	if m.putErr != nil {
		return "", m.putErr
	}
	key := fmt.Sprintf("documents/%d/%d%s", userID, len(m.objects)+1, ext)
	m.objects[key] = data
	return key, nil
}

func (m *memoryStorage) Delete(objectKey string) error {
	delete(m.objects, objectKey)
	return nil
}

func (m *memoryStorage) SignedURL(objectKey string) (string, error) {
	return "https://cdn.example.com/" + objectKey + "?sig=1", nil
}

func setupDocumentService(t *testing.T, storage DocumentStorage) (*DocumentService, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	cfg := &config.Config{
		Upload: config.UploadConfig{
			MaxSize:           16,
			AllowedExtensions: []string{".pdf", ".txt"},
		},
	}

	service := NewDocumentService(
		repository.NewDocumentRepository(db),
		repository.NewQuizRepository(db),
		storage,
		cfg,
		zerolog.Nop(),
	)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return service, db, cleanup
}

func TestDocumentService_Upload(t *testing.T) {
	storage := newMemoryStorage()
	service, db, cleanup := setupDocumentService(t, storage)
	defer cleanup()

	user := testutil.TestUser(t, db)

	info, err := service.Upload(context.Background(), user.ID, "Notes.TXT", strings.NewReader("hello"))
	require.NoError(t, err)

	assert.NotZero(t, info.ID)
	assert.Equal(t, "Notes.TXT", info.FileName)
	assert.Equal(t, int64(5), info.SizeBytes)
	assert.Equal(t, "text/plain; charset=utf-8", info.ContentType)
	assert.Contains(t, info.URL, "sig=1")
	assert.Len(t, storage.objects, 1)

	var doc model.Document
	require.NoError(t, db.First(&doc, info.ID).Error)
	assert.True(t, strings.HasSuffix(doc.ReferenceID, ".txt"))
}

func TestDocumentService_Upload_Rejected(t *testing.T) {
	storage := newMemoryStorage()
	service, db, cleanup := setupDocumentService(t, storage)
	defer cleanup()

	user := testutil.TestUser(t, db)

	_, err := service.Upload(context.Background(), user.ID, "run.exe", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrFileTypeNotAllowed)

	_, err = service.Upload(context.Background(), user.ID, "big.pdf", strings.NewReader(strings.Repeat("x", 17)))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	assert.Empty(t, storage.objects)
}

func TestDocumentService_Upload_StorageFailure(t *testing.T) {
	storage := newMemoryStorage()
	storage.putErr = errors.New("oss unavailable")
	service, db, cleanup := setupDocumentService(t, storage)
	defer cleanup()

	user := testutil.TestUser(t, db)

	_, err := service.Upload(context.Background(), user.ID, "a.pdf", strings.NewReader("x"))
	assert.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&model.Document{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDocumentService_Upload_NoStorage(t *testing.T) {
	service, db, cleanup := setupDocumentService(t, nil)
	defer cleanup()

	user := testutil.TestUser(t, db)
	_, err := service.Upload(context.Background(), user.ID, "a.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestDocumentService_List(t *testing.T) {
	service, db, cleanup := setupDocumentService(t, newMemoryStorage())
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestDocument(t, db, user.ID)
	testutil.TestDocument(t, db, user.ID)
	testutil.TestDocument(t, db, testutil.TestUser(t, db).ID)

	docs, err := service.List(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestDocumentService_Delete_KeepsQuizzes(t *testing.T) {
	storage := newMemoryStorage()
	service, db, cleanup := setupDocumentService(t, storage)
	defer cleanup()

	user := testutil.TestUser(t, db)
	info, err := service.Upload(context.Background(), user.ID, "a.pdf", strings.NewReader("x"))
	require.NoError(t, err)
	quiz := testutil.TestQuiz(t, db, user.ID, testutil.WithDocument(info.ID))

	require.NoError(t, service.Delete(context.Background(), user.ID, info.ID))
	assert.Empty(t, storage.objects)

	var stored model.Quiz
	require.NoError(t, db.First(&stored, quiz.ID).Error)
	assert.Nil(t, stored.DocumentID)
	assert.True(t, stored.HasFiles)
}

func TestDocumentService_Delete_NotOwner(t *testing.T) {
	service, db, cleanup := setupDocumentService(t, newMemoryStorage())
	defer cleanup()

	doc := testutil.TestDocument(t, db, testutil.TestUser(t, db).ID)
	other := testutil.TestUser(t, db)

	assert.ErrorIs(t, service.Delete(context.Background(), other.ID, doc.ID), ErrDocumentNotFound)
	assert.ErrorIs(t, service.Delete(context.Background(), other.ID, 424242), ErrDocumentNotFound)
}

func TestDocumentService_PurgeOrphans(t *testing.T) {
	storage := newMemoryStorage()
	service, db, cleanup := setupDocumentService(t, storage)
	defer cleanup()

	ctx := context.Background()
	user := testutil.TestUser(t, db)

	kept := testutil.TestDocument(t, db, user.ID)
	orphan := testutil.TestDocument(t, db, user.ID)
	fresh := testutil.TestDocument(t, db, user.ID)
	storage.objects[orphan.ReferenceID] = []byte("x")
	testutil.TestQuiz(t, db, user.ID, testutil.WithDocument(kept.ID))

	now := time.Now().UTC()
	require.NoError(t, db.Model(&model.Document{}).
		Where("id IN ?", []int64{kept.ID, orphan.ID}).
		Update("created_at", now.Add(-40*24*time.Hour)).Error)

	n, err := service.PurgeOrphans(ctx, now, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotContains(t, storage.objects, orphan.ReferenceID)

	var remaining []int64
	require.NoError(t, db.Model(&model.Document{}).Order("id").Pluck("id", &remaining).Error)
	assert.Equal(t, []int64{kept.ID, fresh.ID}, remaining)

	n, err = service.PurgeOrphans(ctx, now, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}
