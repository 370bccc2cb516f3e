package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// webhook 处理结果
const (
	OutcomeApplied  = "applied"
	OutcomeIgnored  = "ignored"
	OutcomeRejected = "rejected" // 签名或报文不合法
	OutcomeFailed   = "failed"   // 状态机拒绝或存储失败
)

// 配额判定结果
const (
	QuotaAllowed = "allowed"
	QuotaDenied  = "denied"
	QuotaPremium = "premium"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quiz_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_billing_webhook_events_total",
			Help: "Billing webhook deliveries by event type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	QuotaChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_quota_checks_total",
			Help: "Quota decisions by partition and outcome",
		},
		[]string{"partition", "outcome"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quiz_generation_duration_seconds",
			Help:    "Latency of calls to the question generation service",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"outcome"},
	)

	StatusPushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_subscription_status_pushes_total",
			Help: "Subscription status messages published or forwarded to websocket clients",
		},
		[]string{"stage"},
	)
)

func RecordWebhookEvent(eventType, outcome string) {
	if eventType == "" {
		eventType = "unknown"
	}
	WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// Partition 配额分区标签
func Partition(usesFiles bool) string {
	if usesFiles {
		return "files"
	}
	return "no_files"
}

func RecordQuotaCheck(usesFiles bool, outcome string) {
	QuotaChecksTotal.WithLabelValues(Partition(usesFiles), outcome).Inc()
}

func ObserveGeneration(outcome string, d time.Duration) {
	GenerationDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func RecordStatusPush(stage string) {
	StatusPushesTotal.WithLabelValues(stage).Inc()
}

// Middleware 记录请求数与耗时，path 取路由模板避免高基数
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
