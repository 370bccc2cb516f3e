package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/qs3c/quiz_go_server/internal/pkg/metrics"
	"github.com/qs3c/quiz_go_server/internal/pkg/pubsub"
	"github.com/qs3c/quiz_go_server/internal/pkg/ws"
)

const defaultReconnectBackoff = 5 * time.Second

// StatusSource 订阅状态消息来源
type StatusSource interface {
	Subscribe(ctx context.Context, handler func(*pubsub.StatusMessage)) error
}

// UserSender 向在线用户推送消息，用户不在线时不报错
type UserSender interface {
	SendToUser(userID int64, msg *ws.Message) error
}

// StatusRelay 把 Redis 上的订阅状态变更转发给该用户的 WebSocket 连接
type StatusRelay struct {
	source  StatusSource
	sender  UserSender
	backoff time.Duration
	logger  zerolog.Logger
}

func NewStatusRelay(source StatusSource, sender UserSender, backoff time.Duration, logger zerolog.Logger) *StatusRelay {
	if backoff <= 0 {
		backoff = defaultReconnectBackoff
	}
	return &StatusRelay{
		source:  source,
		sender:  sender,
		backoff: backoff,
		logger:  logger.With().Str("service", "StatusRelay").Logger(),
	}
}

// Run 阻塞直到 ctx 结束，订阅断开后按固定间隔重连
func (r *StatusRelay) Run(ctx context.Context) {
	r.logger.Info().Msg("Status relay started")

	for {
		err := r.source.Subscribe(ctx, r.forward)
		if ctx.Err() != nil {
			r.logger.Info().Msg("Status relay stopped")
			return
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Warn().Err(err).Dur("backoff", r.backoff).Msg("Status subscription lost, retrying")
		}

		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Status relay stopped")
			return
		case <-time.After(r.backoff):
		}
	}
}

func (r *StatusRelay) forward(msg *pubsub.StatusMessage) {
	err := r.sender.SendToUser(msg.UserID, &ws.Message{
		Type: pubsub.MessageTypeSubscriptionStatus,
		Data: msg,
	})
	if err != nil {
		r.logger.Warn().Err(err).Int64("user_id", msg.UserID).Msg("Status push failed")
		return
	}
	metrics.RecordStatusPush("forwarded")
}
