package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/qs3c/quiz_go_server/config"
	"github.com/qs3c/quiz_go_server/internal/api/handler"
	"github.com/qs3c/quiz_go_server/internal/api/middleware"
	"github.com/qs3c/quiz_go_server/internal/pkg/metrics"
	"github.com/qs3c/quiz_go_server/internal/service"
)

// Handlers 路由依赖的全部处理器
type Handlers struct {
	Auth         *handler.AuthHandler
	User         *handler.UserHandler
	Quota        *handler.QuotaHandler
	Subscription *handler.SubscriptionHandler
	Webhook      *handler.WebhookHandler
	Quiz         *handler.QuizHandler
	Document     *handler.DocumentHandler
	WebSocket    *handler.WebSocketHandler
}

type Router struct {
	handlers     Handlers
	quotaService *service.QuotaService
	cfg          *config.Config
	logger       zerolog.Logger
}

func NewRouter(handlers Handlers, quotaService *service.QuotaService, cfg *config.Config, logger zerolog.Logger) *Router {
	return &Router{
		handlers:     handlers,
		quotaService: quotaService,
		cfg:          cfg,
		logger:       logger,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	h := r.handlers

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(r.logger))
	engine.Use(metrics.Middleware())
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api/v1")
	{
		// 计费回调不限流，签名校验在处理器内完成
		api.POST("/webhooks/billing", h.Webhook.Billing)

		// WebSocket
		api.GET("/ws", h.WebSocket.Handle)

		limited := api.Group("")
		limited.Use(middleware.RateLimit(r.cfg.RateLimit.RPS, r.cfg.RateLimit.Burst))

		// 公开接口 - 认证
		auth := limited.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
		}

		// 公开接口 - 分享的测验（可选认证）
		shared := limited.Group("/shared")
		shared.Use(middleware.OptionalAuth(r.cfg.JWT.Secret))
		{
			shared.GET("/:token", h.Quiz.GetShared)
		}

		// 需要认证的接口
		authenticated := limited.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			user := authenticated.Group("/user")
			{
				user.GET("/profile", h.User.GetProfile)
				user.PUT("/profile", h.User.UpdateProfile)
				user.GET("/quota", h.Quota.GetQuota)
			}

			authenticated.GET("/subscription", h.Subscription.Get)

			quizzes := authenticated.Group("/quizzes")
			{
				quizzes.POST("", middleware.QuotaCheck(r.quotaService), h.Quiz.Create)
				quizzes.GET("", h.Quiz.List)
				quizzes.GET("/:id", h.Quiz.Get)
				quizzes.DELETE("/:id", h.Quiz.Delete)
				quizzes.POST("/:id/share", h.Quiz.Share)
				quizzes.DELETE("/:id/share", h.Quiz.Unshare)
				quizzes.POST("/:id/attempts", h.Quiz.SubmitAttempt)
				quizzes.GET("/:id/results", h.Quiz.ListResults)
			}

			documents := authenticated.Group("/documents")
			{
				documents.POST("", h.Document.Upload)
				documents.GET("", h.Document.List)
				documents.DELETE("/:id", h.Document.Delete)
			}
		}
	}

	return engine
}
