package cron

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DocumentPurger 清理不再被引用的文档
type DocumentPurger interface {
	PurgeOrphans(ctx context.Context, now time.Time, retention time.Duration) (int, error)
}

type Service struct {
	purger    DocumentPurger
	interval  time.Duration
	retention time.Duration
	logger    zerolog.Logger
	now       func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewService(purger DocumentPurger, interval, retention time.Duration, logger zerolog.Logger) *Service {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Service{
		purger:    purger,
		interval:  interval,
		retention: retention,
		logger:    logger.With().Str("service", "Cron").Logger(),
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

// Start 启动定时任务，retention 未配置时不启动
func (s *Service) Start() {
	if s.retention <= 0 {
		s.logger.Info().Msg("Document cleanup disabled")
		return
	}

	s.wg.Add(1)
	go s.runCleanup()
	s.logger.Info().
		Dur("interval", s.interval).
		Dur("retention", s.retention).
		Msg("Cron service started")
}

// Stop 停止定时任务并等待正在执行的清理结束
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	s.logger.Info().Msg("Cron service stopped")
}

func (s *Service) runCleanup() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanupDocuments()
		}
	}
}

// cleanupDocuments 单轮清理，超时为一个周期
func (s *Service) cleanupDocuments() int {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	n, err := s.purger.PurgeOrphans(ctx, s.now(), s.retention)
	if err != nil {
		s.logger.Error().Err(err).Int("purged", n).Msg("Document cleanup failed")
		return n
	}
	if n > 0 {
		s.logger.Info().Int("purged", n).Msg("Orphan documents purged")
	}
	return n
}
