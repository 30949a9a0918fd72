package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/plantline/convo/internal/middleware"
	"github.com/plantline/convo/internal/service"
	"github.com/plantline/convo/pkg/errcode"
	"github.com/plantline/convo/pkg/response"
)

// MessageHandler handles message-related requests
type MessageHandler struct {
	msgService  *service.MessageService
	readService *service.ReadReceiptService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(msgService *service.MessageService, readService *service.ReadReceiptService) *MessageHandler {
	return &MessageHandler{msgService: msgService, readService: readService}
}

// Send handles send message request
func (h *MessageHandler) Send(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req service.SendMessageRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	msg, err := h.msgService.SendMessage(ctx, userId, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msg)
}

// EditRequest represents an edit message request
type EditRequest struct {
	MessageId string `json:"message_id"`
	Content   string `json:"content"`
}

// Edit handles edit message request
func (h *MessageHandler) Edit(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req EditRequest
	if err := c.BindAndValidate(&req); err != nil || req.MessageId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	msg, err := h.msgService.EditMessage(ctx, req.MessageId, userId, req.Content)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msg)
}

// DeleteRequest represents a delete message request
type DeleteRequest struct {
	MessageId string `json:"message_id"`
	// AsModerator is honored only when the gateway marked the caller as
	// moderator for this route
	AsModerator bool `json:"as_moderator"`
}

// Delete handles delete message request
func (h *MessageHandler) Delete(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req DeleteRequest
	if err := c.BindAndValidate(&req); err != nil || req.MessageId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	asModerator := req.AsModerator && string(c.GetHeader("X-User-Role")) == "moderator"

	if err := h.msgService.DeleteMessage(ctx, req.MessageId, userId, asModerator); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}

// List handles list messages request
func (h *MessageHandler) List(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	conversationId := c.Query("conversation_id")
	if conversationId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	beforeSeq, _ := strconv.ParseInt(c.Query("before_seq"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))

	req := &service.ListMessagesRequest{
		ConversationId: conversationId,
		BeforeSeq:      beforeSeq,
		Limit:          limit,
	}

	messages, err := h.msgService.ListMessages(ctx, userId, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"messages": messages,
	})
}

// MarkReadRequest represents a mark read request
type MarkReadRequest struct {
	ConversationId string `json:"conversation_id"`
	UptoMessageId  string `json:"upto_message_id"`
}

// MarkRead handles mark read request
func (h *MessageHandler) MarkRead(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req MarkReadRequest
	if err := c.BindAndValidate(&req); err != nil || req.ConversationId == "" || req.UptoMessageId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	if err := h.readService.MarkRead(ctx, req.ConversationId, userId, req.UptoMessageId); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}

// UnreadCount handles unread count request
func (h *MessageHandler) UnreadCount(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	conversationId := c.Query("conversation_id")
	if conversationId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	count, err := h.readService.UnreadCount(ctx, conversationId, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"unread_count": count,
	})
}
