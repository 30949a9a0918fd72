package service

import (
	"context"

	"github.com/mbeoliero/kit/log"
	"github.com/plantline/convo/internal/entity"
	"github.com/plantline/convo/pkg/errcode"
	"github.com/plantline/convo/pkg/idgen"
)

// ConversationService is the conversation directory: it creates and finds
// conversations and enforces the membership invariants.
type ConversationService struct {
	convs    ConversationStore
	parts    ParticipantStore
	receipts ReceiptStore
}

// NewConversationService creates a new ConversationService
func NewConversationService(convs ConversationStore, parts ParticipantStore, receipts ReceiptStore) *ConversationService {
	return &ConversationService{convs: convs, parts: parts, receipts: receipts}
}

// CreateDirectConversation returns the direct conversation between the two
// users, creating it if needed. Concurrent calls for the same pair converge
// on one conversation via the unique pair key.
func (s *ConversationService) CreateDirectConversation(ctx context.Context, userA, userB string) (*entity.ConversationInfo, error) {
	if userA == "" || userB == "" || userA == userB {
		return nil, errcode.ErrInvalidParam
	}

	id, err := idgen.NextID()
	if err != nil {
		log.CtxError(ctx, "generate conversation id failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	now := entity.NowUnixMilli()
	pairKey := entity.DirectPairKey(userA, userB)
	conv := &entity.Conversation{
		Id:      id,
		IsGroup: false,
		PairKey: &pairKey,
	}
	participants := []*entity.ConversationParticipant{
		{UserId: userA, JoinedAt: now, IsActive: true},
		{UserId: userB, JoinedAt: now, IsActive: true},
	}

	conv, created, err := s.convs.CreateDirect(ctx, conv, participants)
	if err != nil {
		log.CtxError(ctx, "create direct conversation failed: pair=%s, error=%v", pairKey, err)
		return nil, errcode.ErrInternalServer
	}

	if created {
		log.CtxInfo(ctx, "direct conversation created: id=%s, pair=%s", conv.Id, pairKey)
	}

	return &entity.ConversationInfo{
		Id:           conv.Id,
		IsGroup:      false,
		Participants: []string{userA, userB},
		UpdatedAt:    conv.UpdatedAt,
	}, nil
}

// CreateGroupConversation creates a group conversation. The creator is
// always part of the initial member set.
func (s *ConversationService) CreateGroupConversation(ctx context.Context, creatorId, name string, memberIds []string) (*entity.ConversationInfo, error) {
	if creatorId == "" {
		return nil, errcode.ErrInvalidParam
	}

	members := dedupeWith(memberIds, creatorId)

	id, err := idgen.NextID()
	if err != nil {
		log.CtxError(ctx, "generate conversation id failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	now := entity.NowUnixMilli()
	conv := &entity.Conversation{
		Id:        id,
		IsGroup:   true,
		CreatedBy: &creatorId,
	}
	if name != "" {
		conv.Name = &name
	}

	participants := make([]*entity.ConversationParticipant, 0, len(members))
	for _, userId := range members {
		participants = append(participants, &entity.ConversationParticipant{
			UserId:   userId,
			JoinedAt: now,
			IsActive: true,
		})
	}

	if err := s.convs.CreateGroup(ctx, conv, participants); err != nil {
		log.CtxError(ctx, "create group conversation failed: creator=%s, error=%v", creatorId, err)
		return nil, errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "group conversation created: id=%s, creator=%s, members=%d", conv.Id, creatorId, len(members))

	return &entity.ConversationInfo{
		Id:           conv.Id,
		Name:         conv.Name,
		IsGroup:      true,
		CreatedBy:    conv.CreatedBy,
		Participants: members,
		UpdatedAt:    conv.UpdatedAt,
	}, nil
}

// AddParticipant adds a user to a group conversation, reactivating a
// previously removed membership row if one exists
func (s *ConversationService) AddParticipant(ctx context.Context, conversationId, userId string) error {
	conv, err := s.getConversation(ctx, conversationId)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return errcode.ErrDirectMembership
	}

	p, err := s.parts.Get(ctx, conversationId, userId)
	if err != nil {
		log.CtxError(ctx, "get participant failed: %v", err)
		return errcode.ErrInternalServer
	}
	if p != nil && p.IsActive {
		return errcode.ErrAlreadyMember
	}

	now := entity.NowUnixMilli()
	err = s.parts.Upsert(ctx, &entity.ConversationParticipant{
		ConversationId: conversationId,
		UserId:         userId,
		JoinedAt:       now,
		IsActive:       true,
	})
	if err != nil {
		log.CtxError(ctx, "add participant failed: conv=%s, user=%s, error=%v", conversationId, userId, err)
		return errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "participant added: conv=%s, user=%s", conversationId, userId)
	return nil
}

// RemoveParticipant soft-removes a user from a group conversation. The
// membership row and the user's read state are kept.
func (s *ConversationService) RemoveParticipant(ctx context.Context, conversationId, userId string) error {
	conv, err := s.getConversation(ctx, conversationId)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return errcode.ErrDirectMembership
	}

	p, err := s.parts.Get(ctx, conversationId, userId)
	if err != nil {
		log.CtxError(ctx, "get participant failed: %v", err)
		return errcode.ErrInternalServer
	}
	if p == nil || !p.IsActive {
		return errcode.ErrNotMember
	}

	if err := s.parts.Deactivate(ctx, conversationId, userId, entity.NowUnixMilli()); err != nil {
		log.CtxError(ctx, "remove participant failed: conv=%s, user=%s, error=%v", conversationId, userId, err)
		return errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "participant removed: conv=%s, user=%s", conversationId, userId)
	return nil
}

// ListForUser lists the user's conversations, most recently active first
func (s *ConversationService) ListForUser(ctx context.Context, userId string) ([]*entity.ConversationInfo, error) {
	summaries, err := s.convs.ListForUser(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "list conversations failed: user=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}

	result := make([]*entity.ConversationInfo, 0, len(summaries))
	for _, sum := range summaries {
		result = append(result, &entity.ConversationInfo{
			Id:             sum.Id,
			Name:           sum.Name,
			IsGroup:        sum.IsGroup,
			CreatedBy:      sum.CreatedBy,
			LastMessageSeq: sum.LastMessageSeq,
			UnreadCount:    sum.UnreadCount,
			UpdatedAt:      sum.UpdatedAt,
		})
	}
	return result, nil
}

// GetConversation returns a single conversation with the caller's unread
// count, requiring active membership
func (s *ConversationService) GetConversation(ctx context.Context, userId, conversationId string) (*entity.ConversationInfo, error) {
	conv, err := s.getConversation(ctx, conversationId)
	if err != nil {
		return nil, err
	}

	p, err := s.parts.Get(ctx, conversationId, userId)
	if err != nil {
		log.CtxError(ctx, "get participant failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if p == nil || !p.IsActive {
		return nil, errcode.ErrNotAParticipant
	}

	participants, err := s.parts.ListActive(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "list participants failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	userIds := make([]string, 0, len(participants))
	for _, part := range participants {
		userIds = append(userIds, part.UserId)
	}

	unread, err := s.receipts.CountUnread(ctx, conversationId, userId)
	if err != nil {
		log.CtxError(ctx, "count unread failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	return &entity.ConversationInfo{
		Id:           conv.Id,
		Name:         conv.Name,
		IsGroup:      conv.IsGroup,
		CreatedBy:    conv.CreatedBy,
		Participants: userIds,
		UnreadCount:  unread,
		UpdatedAt:    conv.UpdatedAt,
	}, nil
}

func (s *ConversationService) getConversation(ctx context.Context, conversationId string) (*entity.Conversation, error) {
	conv, err := s.convs.GetById(ctx, conversationId)
	if err != nil {
		log.CtxError(ctx, "get conversation failed: id=%s, error=%v", conversationId, err)
		return nil, errcode.ErrInternalServer
	}
	if conv == nil {
		return nil, errcode.ErrConvNotFound
	}
	return conv, nil
}

// dedupeWith returns ids deduplicated, guaranteeing required is included
func dedupeWith(ids []string, required string) []string {
	seen := map[string]bool{required: true}
	result := []string{required}
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}
