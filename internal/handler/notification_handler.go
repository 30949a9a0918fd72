package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/plantline/convo/internal/dispatch"
	"github.com/plantline/convo/internal/middleware"
	"github.com/plantline/convo/internal/service"
	"github.com/plantline/convo/pkg/errcode"
	"github.com/plantline/convo/pkg/response"
)

// NotificationHandler handles notification-related requests
type NotificationHandler struct {
	notifyService *service.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifyService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifyService: notifyService}
}

// List handles list notifications request
func (h *NotificationHandler) List(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	unreadOnly, _ := strconv.ParseBool(c.Query("unread_only"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	beforeId := c.Query("before_id")

	notifications, err := h.notifyService.List(ctx, userId, unreadOnly, beforeId, limit)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, notifications)
}

// MarkReadRequest represents a mark notification read request
type NotificationMarkReadRequest struct {
	NotificationId string `json:"notification_id"`
}

// MarkRead handles mark notification read request
func (h *NotificationHandler) MarkRead(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req NotificationMarkReadRequest
	if err := c.BindAndValidate(&req); err != nil || req.NotificationId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	if err := h.notifyService.MarkRead(ctx, req.NotificationId, userId); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}

// EmitAlertRequest represents an internal alert emission request
type EmitAlertRequest struct {
	UserId  string                            `json:"user_id"`
	Type    string                            `json:"type"`
	Title   string                            `json:"title"`
	Content string                            `json:"content"`
	System  *dispatch.SystemAlertPayload      `json:"system,omitempty"`
	Perf    *dispatch.PerformanceAlertPayload `json:"perf,omitempty"`
}

// EmitAlert handles the internal ingress used by the workforce and
// performance subsystems to raise SYSTEM / PERFORMANCE_ALERT notifications
func (h *NotificationHandler) EmitAlert(ctx context.Context, c *app.RequestContext) {
	var req EmitAlertRequest
	if err := c.BindAndValidate(&req); err != nil || req.UserId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	switch req.Type {
	case "SYSTEM":
		if req.System == nil {
			response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
			return
		}
		n, err := h.notifyService.EmitSystemAlert(ctx, req.UserId, req.Title, req.Content, req.System)
		if err != nil {
			response.Error(ctx, c, err)
			return
		}
		response.Success(ctx, c, n)
	case "PERFORMANCE_ALERT":
		if req.Perf == nil {
			response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
			return
		}
		n, err := h.notifyService.EmitPerformanceAlert(ctx, req.UserId, req.Title, req.Content, req.Perf)
		if err != nil {
			response.Error(ctx, c, err)
			return
		}
		response.Success(ctx, c, n)
	default:
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
	}
}
