package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/mbeoliero/kit/log"
	"github.com/plantline/convo/internal/config"
	"github.com/plantline/convo/internal/dispatch"
	"github.com/plantline/convo/internal/handler"
	"github.com/plantline/convo/internal/repository"
	"github.com/plantline/convo/internal/router"
	"github.com/plantline/convo/internal/service"
	"github.com/plantline/convo/pkg/constant"
)

func main() {
	ctx := context.TODO()

	// Load configuration
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		log.CtxError(ctx, "failed to load config: %v", err)
		panic(err)
	}

	log.CtxInfo(ctx, "config loaded: mode=%s", cfg.Server.Mode)

	constant.InitRedisKeyPrefix(cfg.Redis.KeyPrefix)

	// Initialize repositories
	repos, err := repository.NewRepositories(cfg)
	if err != nil {
		log.CtxError(ctx, "failed to initialize repositories: %v", err)
		panic(err)
	}
	defer repos.Close()

	if err := repos.CheckConnection(ctx); err != nil {
		log.CtxError(ctx, "database connection check failed: %v", err)
		panic(err)
	}
	if err := repos.AutoMigrate(); err != nil {
		log.CtxError(ctx, "schema migration failed: %v", err)
		panic(err)
	}
	log.CtxInfo(ctx, "database ready")

	// Initialize services
	convService := service.NewConversationService(repos.Conversation, repos.Participant, repos.Receipt)
	msgService := service.NewMessageService(repos.Message, repos.Conversation, repos.Participant, repos.Seq, repos.Receipt, cfg)
	readService := service.NewReadReceiptService(repos.Receipt, repos.Participant, repos.Message)
	notifyService := service.NewNotificationService(repos.Notification)

	// Start the outbox dispatcher
	dispatcher := dispatch.NewDispatcher(repos.Outbox, repos.Participant, repos.Receipt, repos.Notification, &cfg.Dispatch)
	if err := dispatcher.Start(ctx); err != nil {
		log.CtxError(ctx, "failed to start dispatcher: %v", err)
		panic(err)
	}
	defer dispatcher.Stop()

	// Initialize handlers
	handlers := &router.Handlers{
		Conversation: handler.NewConversationHandler(convService),
		Message:      handler.NewMessageHandler(msgService, readService),
		Notification: handler.NewNotificationHandler(notifyService),
	}

	// Create Hertz server
	h := server.Default(
		server.WithHostPorts(fmt.Sprintf(":%d", cfg.Server.HTTPPort)),
	)

	router.SetupRouter(h, handlers)

	log.CtxInfo(ctx, "server starting on port %d", cfg.Server.HTTPPort)

	go func() {
		h.Spin()
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.CtxInfo(ctx, "shutting down server...")

	if err := h.Shutdown(ctx); err != nil {
		log.CtxError(ctx, "server shutdown error: %v", err)
	}

	log.CtxInfo(ctx, "server stopped")
}
