package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/quiz_go_server/internal/model"
)

// SubscriptionUpdate 一次状态迁移要写入的字段，nil 表示不修改
type SubscriptionUpdate struct {
	Status   model.SubscriptionStatus
	StartsAt *time.Time
	EndsAt   *time.Time
}

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Create 写入新订阅，user_id 或 billing_customer_id 冲突时返回 gorm.ErrDuplicatedKey
func (r *SubscriptionRepository) Create(ctx context.Context, sub *model.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *SubscriptionRepository) GetByUserID(ctx context.Context, userID int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) GetByBillingCustomerID(ctx context.Context, customerID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).Where("billing_customer_id = ?", customerID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpdateByBillingCustomerID 单条条件 UPDATE，没有命中记录时返回 gorm.ErrRecordNotFound
func (r *SubscriptionRepository) UpdateByBillingCustomerID(ctx context.Context, customerID string, update SubscriptionUpdate, now time.Time) error {
	fields := map[string]interface{}{
		"status":     update.Status,
		"updated_at": now.UTC(),
	}
	if update.StartsAt != nil {
		fields["starts_at"] = update.StartsAt.UTC()
	}
	if update.EndsAt != nil {
		fields["ends_at"] = update.EndsAt.UTC()
	}

	result := r.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("billing_customer_id = ?", customerID).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
