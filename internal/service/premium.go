package service

import (
	"time"

	"github.com/qs3c/quiz_go_server/internal/model"
)

// IsPremium 是否享有会员权益。状态不是 expired，且 now 落在 [StartsAt, EndsAt) 内。
// canceled 与 paused 在周期结束前仍然有效。结果不缓存，每次判定都重新计算
func IsPremium(sub *model.Subscription, now time.Time) bool {
	if sub == nil || sub.Status == model.SubscriptionExpired {
		return false
	}
	if sub.StartsAt == nil || sub.EndsAt == nil {
		return false
	}
	return !now.Before(*sub.StartsAt) && now.Before(*sub.EndsAt)
}
