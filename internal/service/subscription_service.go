package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/qs3c/quiz_go_server/internal/model"
	"github.com/qs3c/quiz_go_server/internal/model/dto"
	"github.com/qs3c/quiz_go_server/internal/pkg/billing"
	"github.com/qs3c/quiz_go_server/internal/pkg/metrics"
	"github.com/qs3c/quiz_go_server/internal/pkg/pubsub"
	"github.com/qs3c/quiz_go_server/internal/repository"
)

var (
	ErrSubscriptionNotFound = errors.New("订阅不存在")
	ErrSubscriptionExists   = errors.New("订阅已存在")
	ErrAccountNotFound      = errors.New("没有与该邮箱匹配的账号")
	ErrInvalidEvent         = errors.New("计费事件缺少必要字段")
)

// StatusNotifier 订阅变更后的广播出口
type StatusNotifier interface {
	PublishSubscriptionStatus(ctx context.Context, msg *pubsub.StatusMessage) error
}

// eventHandler 处理一种计费事件，返回变更后的订阅
type eventHandler func(ctx context.Context, evt *billing.Event, now time.Time) (*model.Subscription, error)

type SubscriptionService struct {
	subRepo  *repository.SubscriptionRepository
	userRepo *repository.UserRepository
	notifier StatusNotifier
	logger   zerolog.Logger
	handlers map[billing.EventType]eventHandler
	now      func() time.Time
}

func NewSubscriptionService(
	subRepo *repository.SubscriptionRepository,
	userRepo *repository.UserRepository,
	notifier StatusNotifier,
	logger zerolog.Logger,
) *SubscriptionService {
	s := &SubscriptionService{
		subRepo:  subRepo,
		userRepo: userRepo,
		notifier: notifier,
		logger:   logger.With().Str("service", "SubscriptionService").Logger(),
		now:      time.Now,
	}

	// nil 表示已知但不处理的事件
	s.handlers = map[billing.EventType]eventHandler{
		billing.EventCustomerCreated:       s.onCustomerCreated,
		billing.EventCustomerUpdated:       nil,
		billing.EventSubscriptionActivated: s.onActivated,
		billing.EventSubscriptionUpdated:   nil,
		billing.EventSubscriptionCanceled:  s.setStatus(model.SubscriptionCanceled),
		billing.EventSubscriptionPaused:    s.setStatus(model.SubscriptionPaused),
		billing.EventSubscriptionResumed:   s.setStatus(model.SubscriptionActive),
		billing.EventSubscriptionPastDue:   s.setStatus(model.SubscriptionExpired),
	}

	return s
}

// HandleEvent 按事件类型驱动订阅状态机。applied 为 false 且 err 为 nil 表示事件被忽略。
// 失败不重试，由调用方记录后丢弃
func (s *SubscriptionService) HandleEvent(ctx context.Context, evt *billing.Event) (applied bool, err error) {
	log := s.logger.With().
		Str("event_type", string(evt.EventType)).
		Str("customer_id", evt.CustomerID()).
		Logger()

	handler, known := s.handlers[evt.EventType]
	if !known {
		log.Info().Msg("Ignoring unhandled billing event")
		return false, nil
	}
	if handler == nil {
		log.Debug().Msg("Billing event requires no action")
		return false, nil
	}

	sub, err := handler(ctx, evt, s.now().UTC())
	if err != nil {
		return false, err
	}

	log.Info().
		Str("subscription_id", sub.ID).
		Str("status", string(sub.Status)).
		Msg("Subscription updated")

	s.notify(ctx, sub)
	return true, nil
}

// GetByUserID 获取用户订阅
func (s *SubscriptionService) GetByUserID(ctx context.Context, userID int64) (*model.Subscription, error) {
	sub, err := s.subRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

// GetSubscriptionInfo 订阅详情，is_premium 按当前时间重新计算
func (s *SubscriptionService) GetSubscriptionInfo(ctx context.Context, userID int64) (*dto.SubscriptionResponse, error) {
	sub, err := s.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return &dto.SubscriptionResponse{}, nil
		}
		return nil, err
	}

	return &dto.SubscriptionResponse{
		Subscription: buildSubscriptionInfo(sub),
		IsPremium:    IsPremium(sub, s.now()),
	}, nil
}

func (s *SubscriptionService) onCustomerCreated(ctx context.Context, evt *billing.Event, now time.Time) (*model.Subscription, error) {
	customerID := evt.CustomerID()
	email := normalizeEmail(evt.Data.Email)
	if customerID == "" || email == "" {
		return nil, ErrInvalidEvent
	}

	if _, err := s.subRepo.GetByBillingCustomerID(ctx, customerID); err == nil {
		return nil, ErrSubscriptionExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	sub := &model.Subscription{
		ID:                uuid.NewString(),
		UserID:            user.ID,
		Email:             user.Email,
		BillingCustomerID: customerID,
		SubscriptionType:  model.SubscriptionTypePro,
		Status:            model.SubscriptionActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	// 并发投递同一客户时由唯一索引兜底
	if err := s.subRepo.Create(ctx, sub); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrSubscriptionExists
		}
		return nil, err
	}

	return sub, nil
}

// onActivated 带完整计费周期时才写入起止时间
func (s *SubscriptionService) onActivated(ctx context.Context, evt *billing.Event, now time.Time) (*model.Subscription, error) {
	update := repository.SubscriptionUpdate{Status: model.SubscriptionActive}
	if start, end, ok := evt.Period(); ok {
		update.StartsAt = &start
		update.EndsAt = &end
	}
	return s.transition(ctx, evt, update, now)
}

func (s *SubscriptionService) setStatus(status model.SubscriptionStatus) eventHandler {
	return func(ctx context.Context, evt *billing.Event, now time.Time) (*model.Subscription, error) {
		return s.transition(ctx, evt, repository.SubscriptionUpdate{Status: status}, now)
	}
}

func (s *SubscriptionService) transition(ctx context.Context, evt *billing.Event, update repository.SubscriptionUpdate, now time.Time) (*model.Subscription, error) {
	customerID := evt.CustomerID()
	if customerID == "" {
		return nil, ErrInvalidEvent
	}

	if err := s.subRepo.UpdateByBillingCustomerID(ctx, customerID, update, now); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}

	return s.subRepo.GetByBillingCustomerID(ctx, customerID)
}

// notify 推送失败只记录日志，客户端以 /subscription 为准
func (s *SubscriptionService) notify(ctx context.Context, sub *model.Subscription) {
	if s.notifier == nil {
		return
	}

	msg := &pubsub.StatusMessage{
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		Status:         string(sub.Status),
		StartsAt:       sub.StartsAt,
		EndsAt:         sub.EndsAt,
		IsPremium:      IsPremium(sub, s.now()),
		UpdatedAt:      sub.UpdatedAt,
	}
	if err := s.notifier.PublishSubscriptionStatus(ctx, msg); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", sub.UserID).Msg("Failed to publish subscription status")
		return
	}
	metrics.RecordStatusPush("published")
}

func buildSubscriptionInfo(sub *model.Subscription) *dto.SubscriptionInfo {
	if sub == nil {
		return nil
	}

	info := &dto.SubscriptionInfo{
		ID:                sub.ID,
		Status:            string(sub.Status),
		SubscriptionType:  string(sub.SubscriptionType),
		BillingCustomerID: sub.BillingCustomerID,
		UpdatedAt:         sub.UpdatedAt.Format(time.RFC3339),
	}
	if sub.StartsAt != nil {
		info.StartsAt = sub.StartsAt.Format(time.RFC3339)
	}
	if sub.EndsAt != nil {
		info.EndsAt = sub.EndsAt.Format(time.RFC3339)
	}
	return info
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
