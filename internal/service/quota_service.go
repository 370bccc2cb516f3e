package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/qs3c/quiz_go_server/config"
	"github.com/qs3c/quiz_go_server/internal/model"
	"github.com/qs3c/quiz_go_server/internal/model/dto"
	"github.com/qs3c/quiz_go_server/internal/pkg/metrics"
	"github.com/qs3c/quiz_go_server/internal/repository"
)

var ErrQuotaExceeded = errors.New("本月出题配额已用完")

// 非会员每月上限
const (
	DefaultFilesMonthlyLimit   = 5
	DefaultNoFilesMonthlyLimit = 20

	// Unlimited 会员的 limit 与 remaining
	Unlimited = -1
)

type QuotaService struct {
	subRepo      *repository.SubscriptionRepository
	quizRepo     *repository.QuizRepository
	filesLimit   int
	noFilesLimit int
	loc          *time.Location
	logger       zerolog.Logger
}

func NewQuotaService(
	subRepo *repository.SubscriptionRepository,
	quizRepo *repository.QuizRepository,
	cfg *config.Config,
	logger zerolog.Logger,
) *QuotaService {
	s := &QuotaService{
		subRepo:      subRepo,
		quizRepo:     quizRepo,
		filesLimit:   DefaultFilesMonthlyLimit,
		noFilesLimit: DefaultNoFilesMonthlyLimit,
		loc:          time.UTC,
		logger:       logger.With().Str("service", "QuotaService").Logger(),
	}

	if cfg.Quota.FilesMonthly > 0 {
		s.filesLimit = cfg.Quota.FilesMonthly
	}
	if cfg.Quota.NoFilesMonthly > 0 {
		s.noFilesLimit = cfg.Quota.NoFilesMonthly
	}
	if cfg.Quota.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Quota.Timezone)
		if err != nil {
			s.logger.Warn().Err(err).Str("timezone", cfg.Quota.Timezone).Msg("Unknown quota timezone, using UTC")
		} else {
			s.loc = loc
		}
	}

	return s
}

// MonthWindow 返回 now 所在自然月 [月初 00:00, 下月初 00:00)，按 loc 计算
func MonthWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	t := now.In(loc)
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// CheckQuota 检查本月是否还能创建该分区的测验。只读，不占用配额，
// 两个并发请求在 used = limit-1 时可能同时通过
func (s *QuotaService) CheckQuota(ctx context.Context, userID int64, usesFiles bool, now time.Time) (*dto.QuotaStatus, error) {
	if _, premium := s.premium(ctx, userID, now); premium {
		metrics.RecordQuotaCheck(usesFiles, metrics.QuotaPremium)
		return &dto.QuotaStatus{Allowed: true, Limit: Unlimited, Remaining: Unlimited}, nil
	}

	status, err := s.partitionStatus(ctx, userID, usesFiles, now)
	if err != nil {
		return nil, err
	}

	outcome := metrics.QuotaAllowed
	if !status.Allowed {
		outcome = metrics.QuotaDenied
	}
	metrics.RecordQuotaCheck(usesFiles, outcome)

	return status, nil
}

// GetQuotaInfo 两个分区的配额以及订阅信息，会员也返回实际用量
func (s *QuotaService) GetQuotaInfo(ctx context.Context, userID int64, now time.Time) (*dto.QuotaInfo, error) {
	sub, premium := s.premium(ctx, userID, now)
	start, end := MonthWindow(now, s.loc)

	withFiles, err := s.partitionStatus(ctx, userID, true, now)
	if err != nil {
		return nil, err
	}
	withoutFiles, err := s.partitionStatus(ctx, userID, false, now)
	if err != nil {
		return nil, err
	}

	if premium {
		for _, st := range []*dto.QuotaStatus{withFiles, withoutFiles} {
			st.Allowed = true
			st.Limit = Unlimited
			st.Remaining = Unlimited
		}
	}

	return &dto.QuotaInfo{
		IsPremium:    premium,
		Subscription: buildSubscriptionInfo(sub),
		PeriodStart:  start.Format(time.RFC3339),
		PeriodEnd:    end.Format(time.RFC3339),
		WithFiles:    *withFiles,
		WithoutFiles: *withoutFiles,
	}, nil
}

func (s *QuotaService) partitionStatus(ctx context.Context, userID int64, usesFiles bool, now time.Time) (*dto.QuotaStatus, error) {
	start, end := MonthWindow(now, s.loc)

	count, err := s.quizRepo.CountInRange(ctx, userID, start, end, usesFiles)
	if err != nil {
		return nil, err
	}

	limit := s.noFilesLimit
	if usesFiles {
		limit = s.filesLimit
	}

	used := int(count)
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}

	return &dto.QuotaStatus{
		Allowed:   remaining > 0,
		Used:      used,
		Limit:     limit,
		Remaining: remaining,
	}, nil
}

// premium 查询失败时按非会员处理
func (s *QuotaService) premium(ctx context.Context, userID int64, now time.Time) (*model.Subscription, bool) {
	sub, err := s.subRepo.GetByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Int64("user_id", userID).Msg("Subscription lookup failed, applying free tier")
		}
		return nil, false
	}
	return sub, IsPremium(sub, now)
}
