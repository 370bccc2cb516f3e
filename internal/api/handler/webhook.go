package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/qs3c/quiz_go_server/internal/pkg/billing"
	"github.com/qs3c/quiz_go_server/internal/pkg/metrics"
	"github.com/qs3c/quiz_go_server/internal/service"
)

// maxWebhookBody webhook 报文上限
const maxWebhookBody = 64 << 10

type WebhookHandler struct {
	subscriptionService *service.SubscriptionService
	verifier            *billing.Verifier
	logger              zerolog.Logger
}

func NewWebhookHandler(subscriptionService *service.SubscriptionService, verifier *billing.Verifier, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		subscriptionService: subscriptionService,
		verifier:            verifier,
		logger:              logger.With().Str("handler", "BillingWebhook").Logger(),
	}
}

// Billing 接收计费平台事件。无论验签或处理结果如何都返回 200，
// 失败只记录日志，不修改任何状态，也不让平台重试
// POST /api/v1/webhooks/billing
func (h *WebhookHandler) Billing(c *gin.Context) {
	defer ack(c)

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to read webhook body")
		metrics.RecordWebhookEvent("", metrics.OutcomeRejected)
		return
	}

	if err := h.verifier.Verify(c.GetHeader(billing.SignatureHeader), body); err != nil {
		h.logger.Warn().Err(err).Str("client_ip", c.ClientIP()).Msg("Webhook signature verification failed")
		metrics.RecordWebhookEvent("", metrics.OutcomeRejected)
		return
	}

	evt, err := billing.ParseEvent(body)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Malformed webhook payload")
		metrics.RecordWebhookEvent("", metrics.OutcomeRejected)
		return
	}

	applied, err := h.subscriptionService.HandleEvent(c.Request.Context(), evt)
	switch {
	case err != nil:
		h.logger.Error().
			Err(err).
			Str("event_type", string(evt.EventType)).
			Str("customer_id", evt.CustomerID()).
			Msg("Failed to apply billing event")
		metrics.RecordWebhookEvent(string(evt.EventType), metrics.OutcomeFailed)
	case applied:
		metrics.RecordWebhookEvent(string(evt.EventType), metrics.OutcomeApplied)
	default:
		metrics.RecordWebhookEvent(string(evt.EventType), metrics.OutcomeIgnored)
	}
}

func ack(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
