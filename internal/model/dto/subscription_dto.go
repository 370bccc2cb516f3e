package dto

// SubscriptionInfo 订阅信息，is_premium 每次请求时实时计算
type SubscriptionInfo struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	SubscriptionType  string `json:"subscription_type"`
	BillingCustomerID string `json:"billing_customer_id"`
	StartsAt          string `json:"starts_at,omitempty"`
	EndsAt            string `json:"ends_at,omitempty"`
	UpdatedAt         string `json:"updated_at"`
}

// SubscriptionResponse GET /subscription 响应
type SubscriptionResponse struct {
	Subscription *SubscriptionInfo `json:"subscription"`
	IsPremium    bool              `json:"is_premium"`
}
