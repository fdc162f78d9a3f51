package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "social_chat_service/cmd/chat_service/docs"
	"social_chat_service/internal/chat/app"
	"social_chat_service/internal/chat/presence"
	"social_chat_service/internal/chat/router"
	"social_chat_service/pkg/config"
	"social_chat_service/pkg/database"
	"social_chat_service/pkg/logger"
	testtool "social_chat_service/pkg/test_tool"
	"social_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	defer logger.Log.Sync()

	cfg, err := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)
	if err != nil {
		logger.Log.Fatal("load config", zap.Error(err))
	}
	cfg.ApplyDefaults()
	if config.EnvConfig.ChatServicePort != "" {
		cfg.Port = config.EnvConfig.ChatServicePort
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = instanceID()
	}
	token.SetSecret(cfg.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 對話儲存
	msgRepo, closeStore := newMessageRepository(ctx, cfg)
	defer closeStore()

	// 2. 使用者資料 (顯示名稱 / 頭像)
	identity, closeIdentity := newIdentityRepository(cfg)
	defer closeIdentity()

	// 3. 附件
	attachments := newAttachmentRepository(cfg)

	// 4. 在線狀態, 單機時只用本機 router
	localRouter := presence.NewLocalRouter()
	pusher := app.NewPusher(localRouter, cfg.Delivery.PushTimeout)
	directory, closeRedis := newPresence(ctx, cfg, pusher)
	defer closeRedis()

	// 5. 通知
	notifier, closeNotifier := newNotifier(ctx, cfg)
	defer closeNotifier()

	// 6. 初始化 UseCases
	dispatchUC := app.NewDispatchUseCase(msgRepo, pusher,
		app.WithNotifier(notifier),
		app.WithNotifyTimeout(cfg.Delivery.PushTimeout),
		app.WithLegacyRelay(cfg.Delivery.LegacyRelay),
	)
	readUC := app.NewReadStateUseCase(msgRepo, pusher)
	summaryUC := app.NewSummaryUseCase(msgRepo, identity, cfg.Delivery.LookupLimit)

	wsHandler := app.NewChatWebsocketHandler(dispatchUC, readUC, summaryUC, localRouter, directory, app.WebsocketConfig{
		SendBuffer:   cfg.Delivery.SendBuffer,
		PingInterval: cfg.Delivery.PingInterval,
		PresenceTTL:  cfg.Delivery.PresenceTTL,
		InstanceID:   cfg.InstanceID,
	})
	httpHandler := app.NewChatHTTPHandler(dispatchUC, readUC, summaryUC, attachments, cfg.MinIO.PresignExpiry, localRouter, directory, cfg.InstanceID)

	// 7. gRPC health
	if cfg.GRPCPort != "" {
		hs, err := database.NewHealthServer(":"+cfg.GRPCPort, config.EnvConfig.ChatService)
		if err != nil {
			logger.Log.Fatal("grpc health", zap.Error(err))
		}
		go hs.Serve()
		defer hs.Stop()
	}

	testtool.StartPprof("")

	// 8. 啟動 Fiber
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		logger.Log.Fatal("open access log", zap.Error(err))
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file, // 将日志输出到文件
	}))

	router.RegisterRoutes(r, wsHandler, httpHandler)

	go func() {
		<-ctx.Done()
		logger.Log.Info("shutting down chat service")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Log.Error("fiber shutdown", zap.Error(err))
		}
	}()

	port := ":" + cfg.Port
	logger.Log.Info("Chat Service listening", zap.String("port", port), zap.String("instance", cfg.InstanceID), zap.String("store", cfg.Store.Driver))
	if err := r.Listen(port); err != nil {
		logger.Log.Error("Failed to start Fiber", zap.Error(err))
	}
}

func instanceID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return uuid.New().String()
}
