package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/plantline/convo/internal/middleware"
	"github.com/plantline/convo/internal/service"
	"github.com/plantline/convo/pkg/errcode"
	"github.com/plantline/convo/pkg/response"
)

// ConversationHandler handles conversation-related requests
type ConversationHandler struct {
	convService *service.ConversationService
}

// NewConversationHandler creates a new ConversationHandler
func NewConversationHandler(convService *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{convService: convService}
}

// CreateDirectRequest represents a create direct conversation request
type CreateDirectRequest struct {
	PeerUserId string `json:"peer_user_id"`
}

// CreateDirect handles create direct conversation request
func (h *ConversationHandler) CreateDirect(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req CreateDirectRequest
	if err := c.BindAndValidate(&req); err != nil || req.PeerUserId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	conv, err := h.convService.CreateDirectConversation(ctx, userId, req.PeerUserId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, conv)
}

// CreateGroupRequest represents a create group conversation request
type CreateGroupRequest struct {
	Name      string   `json:"name"`
	MemberIds []string `json:"member_ids"`
}

// CreateGroup handles create group conversation request
func (h *ConversationHandler) CreateGroup(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req CreateGroupRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	conv, err := h.convService.CreateGroupConversation(ctx, userId, req.Name, req.MemberIds)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, conv)
}

// ParticipantRequest represents add/remove participant requests
type ParticipantRequest struct {
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
}

// AddParticipant handles add participant request
func (h *ConversationHandler) AddParticipant(ctx context.Context, c *app.RequestContext) {
	var req ParticipantRequest
	if err := c.BindAndValidate(&req); err != nil || req.ConversationId == "" || req.UserId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	if err := h.convService.AddParticipant(ctx, req.ConversationId, req.UserId); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}

// RemoveParticipant handles remove participant request
func (h *ConversationHandler) RemoveParticipant(ctx context.Context, c *app.RequestContext) {
	var req ParticipantRequest
	if err := c.BindAndValidate(&req); err != nil || req.ConversationId == "" || req.UserId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	if err := h.convService.RemoveParticipant(ctx, req.ConversationId, req.UserId); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}

// List handles list conversations request
func (h *ConversationHandler) List(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	convs, err := h.convService.ListForUser(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, convs)
}

// Get handles get single conversation request
func (h *ConversationHandler) Get(ctx context.Context, c *app.RequestContext) {
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

	conv, err := h.convService.GetConversation(ctx, userId, conversationId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, conv)
}
