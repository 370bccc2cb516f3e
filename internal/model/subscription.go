package model

import (
	"time"
)

// SubscriptionStatus 订阅状态，只能由计费事件修改
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionPaused   SubscriptionStatus = "paused"
	SubscriptionExpired  SubscriptionStatus = "expired"
)

// SubscriptionType 目前只有 pro 一种套餐
type SubscriptionType string

const (
	SubscriptionTypePro SubscriptionType = "pro"
)

// Subscription 用户的付费订阅，与计费平台客户一一对应
type Subscription struct {
	ID                string             `gorm:"primaryKey;size:36" json:"id"`
	UserID            int64              `gorm:"not null;uniqueIndex" json:"user_id"`
	Email             string             `gorm:"size:100;not null" json:"email"` // 创建时的账号邮箱快照
	BillingCustomerID string             `gorm:"size:100;not null;uniqueIndex" json:"billing_customer_id"`
	StartsAt          *time.Time         `json:"starts_at,omitempty"`
	EndsAt            *time.Time         `json:"ends_at,omitempty"`
	SubscriptionType  SubscriptionType   `gorm:"size:20;not null;default:pro" json:"subscription_type"`
	Status            SubscriptionStatus `gorm:"size:20;not null;index" json:"status"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}
