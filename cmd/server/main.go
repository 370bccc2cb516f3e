package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/qs3c/quiz_go_server/config"
	"github.com/qs3c/quiz_go_server/internal/api"
	"github.com/qs3c/quiz_go_server/internal/api/handler"
	"github.com/qs3c/quiz_go_server/internal/database"
	"github.com/qs3c/quiz_go_server/internal/pkg/billing"
	"github.com/qs3c/quiz_go_server/internal/pkg/cron"
	"github.com/qs3c/quiz_go_server/internal/pkg/llm"
	"github.com/qs3c/quiz_go_server/internal/pkg/logger"
	"github.com/qs3c/quiz_go_server/internal/pkg/oss"
	"github.com/qs3c/quiz_go_server/internal/pkg/pubsub"
	"github.com/qs3c/quiz_go_server/internal/pkg/ws"
	"github.com/qs3c/quiz_go_server/internal/repository"
	"github.com/qs3c/quiz_go_server/internal/service"
	"github.com/qs3c/quiz_go_server/internal/worker"
)

func main() {
	// .env 中的变量通过 viper 的 AutomaticEnv 覆盖配置
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to load .env")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	lg := logger.New(cfg.Log)

	// 初始化数据库
	db, err := database.Open(&cfg.Database)
	if err != nil {
		lg.Fatal().Err(err).Msg("Failed to connect database")
	}
	if err := database.AutoMigrate(db); err != nil {
		lg.Fatal().Err(err).Msg("Failed to migrate database")
	}
	lg.Info().Str("driver", cfg.Database.Driver).Msg("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		lg.Fatal().Err(err).Msg("Failed to connect redis")
	}
	lg.Info().Msg("Redis connected")

	// 初始化 OSS（可选），未配置时文档上传不可用
	var storage service.DocumentStorage
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err := oss.NewClient(&cfg.OSS)
		if err != nil {
			lg.Warn().Err(err).Msg("Failed to init OSS client")
		} else {
			storage = ossClient
			lg.Info().Str("bucket", cfg.OSS.BucketName).Msg("OSS client initialized")
		}
	}

	if cfg.Billing.WebhookSecret == "" {
		lg.Warn().Msg("Billing webhook secret is empty, all webhooks will be rejected")
	}

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	resultRepo := repository.NewResultRepository(db)
	documentRepo := repository.NewDocumentRepository(db)

	// 实时推送
	wsHub := ws.NewHub(lg)
	publisher := pubsub.NewPublisher(rdb, cfg.Realtime.Channel)
	subscriber := pubsub.NewSubscriber(rdb, cfg.Realtime.Channel)

	// 初始化 Service
	authService := service.NewAuthService(userRepo, subRepo, cfg)
	userService := service.NewUserService(userRepo, subRepo)
	quotaService := service.NewQuotaService(subRepo, quizRepo, cfg, lg)
	subscriptionService := service.NewSubscriptionService(subRepo, userRepo, publisher, lg)
	generator := llm.NewClient(cfg.Generator, lg)
	quizService := service.NewQuizService(quizRepo, resultRepo, documentRepo, quotaService, generator, cfg, lg)
	documentService := service.NewDocumentService(documentRepo, quizRepo, storage, cfg, lg)

	// 初始化 Handler 与 Router
	handlers := api.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		User:         handler.NewUserHandler(userService),
		Quota:        handler.NewQuotaHandler(quotaService),
		Subscription: handler.NewSubscriptionHandler(subscriptionService),
		Webhook:      handler.NewWebhookHandler(subscriptionService, billing.NewVerifier(cfg.Billing.WebhookSecret, cfg.Billing.SignatureTolerance), lg),
		Quiz:         handler.NewQuizHandler(quizService),
		Document:     handler.NewDocumentHandler(documentService),
		WebSocket:    handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret, cfg.CORS.AllowedOrigins, lg),
	}
	engine := api.NewRouter(handlers, quotaService, cfg, lg).Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relay := worker.NewStatusRelay(subscriber, wsHub, cfg.Realtime.ReconnectBackoff, lg)
	go relay.Run(ctx)

	cronService := cron.NewService(documentService, cfg.Cleanup.Interval, cfg.Cleanup.DocumentRetention, lg)
	cronService.Start()

	// 启动服务器
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		lg.Info().Str("addr", srv.Addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	lg.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wsHub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error().Err(err).Msg("Server forced to shutdown")
	}
	cronService.Stop()

	if err := rdb.Close(); err != nil {
		lg.Warn().Err(err).Msg("Failed to close redis")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	lg.Info().Msg("Server shut down gracefully")
}
