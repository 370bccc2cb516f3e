package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qs3c/quiz_go_server/internal/model"
)

var seq int64

func nextSeq() int64 {
	return atomic.AddInt64(&seq, 1)
}

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	n := nextSeq()
	user := &model.User{
		Username:     fmt.Sprintf("testuser_%d", n),
		Email:        fmt.Sprintf("test_%d@example.com", n),
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuvwxyz123456", // bcrypt hash placeholder
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithUsername 设置用户名
func WithUsername(username string) func(*model.User) {
	return func(u *model.User) {
		u.Username = username
	}
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = email
	}
}

// WithPasswordHash 设置密码哈希
func WithPasswordHash(hash string) func(*model.User) {
	return func(u *model.User) {
		u.PasswordHash = hash
	}
}

// TestSubscription 创建测试订阅，默认 active 且没有计费周期
func TestSubscription(t *testing.T, db *gorm.DB, user *model.User, opts ...func(*model.Subscription)) *model.Subscription {
	t.Helper()

	sub := &model.Subscription{
		ID:                uuid.NewString(),
		UserID:            user.ID,
		Email:             user.Email,
		BillingCustomerID: fmt.Sprintf("ctm_%d", nextSeq()),
		SubscriptionType:  model.SubscriptionTypePro,
		Status:            model.SubscriptionActive,
	}

	for _, opt := range opts {
		opt(sub)
	}

	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}

	return sub
}

// WithCustomerID 设置计费客户 ID
func WithCustomerID(customerID string) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.BillingCustomerID = customerID
	}
}

// WithStatus 设置订阅状态
func WithStatus(status model.SubscriptionStatus) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.Status = status
	}
}

// WithPeriod 设置计费周期
func WithPeriod(startsAt, endsAt time.Time) func(*model.Subscription) {
	return func(s *model.Subscription) {
		start, end := startsAt.UTC(), endsAt.UTC()
		s.StartsAt = &start
		s.EndsAt = &end
	}
}

// TestQuiz 创建测试测验
func TestQuiz(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Quiz)) *model.Quiz {
	t.Helper()

	quiz := &model.Quiz{
		UserID:            userID,
		Title:             fmt.Sprintf("Test Quiz %d", nextSeq()),
		SubjectsAndTopics: "math: fractions",
		Difficulty:        model.DifficultyEasy,
		QuestionCount:     2,
		Questions: model.Questions{
			{ID: "q1", Text: "1/2 + 1/2 = ?", Options: []string{"1", "2"}, CorrectOptionIndex: 0},
			{ID: "q2", Text: "1/4 of 8 = ?", Options: []string{"4", "2", "1"}, CorrectOptionIndex: 1},
		},
	}

	for _, opt := range opts {
		opt(quiz)
	}

	if err := db.Create(quiz).Error; err != nil {
		t.Fatalf("Failed to create test quiz: %v", err)
	}

	return quiz
}

// WithHasFiles 标记为基于文档的测验
func WithHasFiles(hasFiles bool) func(*model.Quiz) {
	return func(q *model.Quiz) {
		q.HasFiles = hasFiles
	}
}

// WithCreatedAt 设置创建时间
func WithCreatedAt(createdAt time.Time) func(*model.Quiz) {
	return func(q *model.Quiz) {
		q.CreatedAt = createdAt.UTC()
		q.UpdatedAt = createdAt.UTC()
	}
}

// WithDocument 关联文档
func WithDocument(documentID int64) func(*model.Quiz) {
	return func(q *model.Quiz) {
		q.DocumentID = &documentID
		q.HasFiles = true
	}
}

// WithPublic 设置为公开
func WithPublic(token string) func(*model.Quiz) {
	return func(q *model.Quiz) {
		now := time.Now().UTC()
		q.IsPublic = true
		q.ShareToken = &token
		q.SharedAt = &now
	}
}

// TestQuizzes 批量创建测验
func TestQuizzes(t *testing.T, db *gorm.DB, userID int64, n int, opts ...func(*model.Quiz)) {
	t.Helper()
	for i := 0; i < n; i++ {
		TestQuiz(t, db, userID, opts...)
	}
}

// TestDocument 创建测试文档
func TestDocument(t *testing.T, db *gorm.DB, userID int64) *model.Document {
	t.Helper()

	n := nextSeq()
	doc := &model.Document{
		UserID:      userID,
		FileName:    fmt.Sprintf("notes_%d.pdf", n),
		ReferenceID: fmt.Sprintf("documents/%d/%s.pdf", userID, uuid.NewString()),
		ContentType: "application/pdf",
		SizeBytes:   1024,
	}

	if err := db.Create(doc).Error; err != nil {
		t.Fatalf("Failed to create test document: %v", err)
	}

	return doc
}
