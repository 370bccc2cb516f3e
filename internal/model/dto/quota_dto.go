package dto

// QuotaStatus 单个分区的配额判定结果，会员 limit 与 remaining 为 -1
type QuotaStatus struct {
	Allowed   bool `json:"allowed"`
	Used      int  `json:"used"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
}

// QuotaInfo GET /user/quota 响应
type QuotaInfo struct {
	IsPremium    bool              `json:"is_premium"`
	Subscription *SubscriptionInfo `json:"subscription,omitempty"`
	PeriodStart  string            `json:"period_start"`
	PeriodEnd    string            `json:"period_end"`
	WithFiles    QuotaStatus       `json:"with_files"`
	WithoutFiles QuotaStatus       `json:"without_files"`
}
