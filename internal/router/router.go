package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/plantline/convo/internal/handler"
	"github.com/plantline/convo/internal/middleware"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	Conversation *handler.ConversationHandler
	Message      *handler.MessageHandler
	Notification *handler.NotificationHandler
}

// SetupRouter sets up all routes
func SetupRouter(h *server.Hertz, handlers *Handlers) {
	h.Use(middleware.CORS())

	// Health check
	h.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, map[string]string{"status": "ok"})
	})

	// Conversation routes
	convGroup := h.Group("/conversation", middleware.GatewayIdentity())
	{
		convGroup.POST("/direct", handlers.Conversation.CreateDirect)
		convGroup.POST("/group", handlers.Conversation.CreateGroup)
		convGroup.POST("/participant/add", handlers.Conversation.AddParticipant)
		convGroup.POST("/participant/remove", handlers.Conversation.RemoveParticipant)
		convGroup.GET("/list", handlers.Conversation.List)
		convGroup.GET("/info", handlers.Conversation.Get)
	}

	// Message routes
	msgGroup := h.Group("/msg", middleware.GatewayIdentity())
	{
		msgGroup.POST("/send", handlers.Message.Send)
		msgGroup.POST("/edit", handlers.Message.Edit)
		msgGroup.POST("/delete", handlers.Message.Delete)
		msgGroup.GET("/list", handlers.Message.List)
		msgGroup.POST("/mark_read", handlers.Message.MarkRead)
		msgGroup.GET("/unread_count", handlers.Message.UnreadCount)
	}

	// Notification routes
	notifyGroup := h.Group("/notification", middleware.GatewayIdentity())
	{
		notifyGroup.GET("/list", handlers.Notification.List)
		notifyGroup.POST("/mark_read", handlers.Notification.MarkRead)
	}

	// Internal ingress for the workforce/performance subsystems; the
	// gateway keeps this route off the public surface
	h.POST("/internal/alert", handlers.Notification.EmitAlert)
}
