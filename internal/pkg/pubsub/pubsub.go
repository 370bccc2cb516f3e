package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelSubscriptionStatus = "subscription_status"

	MessageTypeSubscriptionStatus = "subscription_status"
)

// StatusMessage 订阅状态变更通知，仅作提示，客户端收到后应重新拉取 /subscription
type StatusMessage struct {
	Type           string     `json:"type"`
	UserID         int64      `json:"user_id"`
	SubscriptionID string     `json:"subscription_id"`
	Status         string     `json:"status"`
	StartsAt       *time.Time `json:"starts_at,omitempty"`
	EndsAt         *time.Time `json:"ends_at,omitempty"`
	IsPremium      bool       `json:"is_premium"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Publisher Redis 发布者
type Publisher struct {
	client  *redis.Client
	channel string
}

// NewPublisher 创建发布者，channel 为空时使用默认频道
func NewPublisher(client *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = ChannelSubscriptionStatus
	}
	return &Publisher{client: client, channel: channel}
}

// PublishSubscriptionStatus 发布订阅状态
func (p *Publisher) PublishSubscriptionStatus(ctx context.Context, msg *StatusMessage) error {
	msg.Type = MessageTypeSubscriptionStatus

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal status message: %w", err)
	}

	return p.client.Publish(ctx, p.channel, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client  *redis.Client
	channel string
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client, channel string) *Subscriber {
	if channel == "" {
		channel = ChannelSubscriptionStatus
	}
	return &Subscriber{client: client, channel: channel}
}

// Subscribe 阻塞接收状态消息。订阅建立失败时立即返回错误，连接断开时返回 nil，由调用方决定是否重订阅
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*StatusMessage)) error {
	ps := s.client.Subscribe(ctx, s.channel)
	defer ps.Close()

	// 等待订阅确认，确保之后发布的消息不会丢
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", s.channel, err)
	}

	ch := ps.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var statusMsg StatusMessage
			if err := json.Unmarshal([]byte(msg.Payload), &statusMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&statusMsg)
		}
	}
}
