package service

import (
	"context"

	"github.com/mbeoliero/kit/log"
	"github.com/plantline/convo/internal/entity"
	"github.com/plantline/convo/pkg/errcode"
)

// ReadReceiptService is the read-receipt tracker. Receipt rows are the
// source of truth; the participant's last_read_at cursor is advanced
// alongside as a denormalization and never consulted for counting.
type ReadReceiptService struct {
	receipts ReceiptStore
	parts    ParticipantStore
	msgs     MessageStore
}

// NewReadReceiptService creates a new ReadReceiptService
func NewReadReceiptService(receipts ReceiptStore, parts ParticipantStore, msgs MessageStore) *ReadReceiptService {
	return &ReadReceiptService{receipts: receipts, parts: parts, msgs: msgs}
}

// MarkRead acknowledges every message up to uptoMessageId that the user
// has not acknowledged yet, then advances the read cursor. Calling it
// twice with the same arguments is a no-op, not an error.
func (s *ReadReceiptService) MarkRead(ctx context.Context, conversationId, userId, uptoMessageId string) error {
	p, err := s.parts.Get(ctx, conversationId, userId)
	if err != nil {
		log.CtxError(ctx, "get participant failed: %v", err)
		return errcode.ErrInternalServer
	}
	if p == nil || !p.IsActive {
		return errcode.ErrNotAParticipant
	}

	upto, err := s.msgs.GetById(ctx, uptoMessageId)
	if err != nil {
		log.CtxError(ctx, "get message failed: id=%s, error=%v", uptoMessageId, err)
		return errcode.ErrInternalServer
	}
	if upto == nil {
		return errcode.ErrMessageNotFound
	}
	if upto.ConversationId != conversationId {
		return errcode.ErrInvalidParam
	}

	now := entity.NowUnixMilli()
	inserted, err := s.receipts.InsertUpTo(ctx, conversationId, userId, upto.Seq, now)
	if err != nil {
		log.CtxError(ctx, "insert receipts failed: conv=%s, user=%s, error=%v", conversationId, userId, err)
		return errcode.ErrInternalServer
	}

	if err := s.parts.AdvanceReadCursor(ctx, conversationId, userId, now); err != nil {
		log.CtxError(ctx, "advance read cursor failed: conv=%s, user=%s, error=%v", conversationId, userId, err)
		return errcode.ErrInternalServer
	}

	log.CtxDebug(ctx, "marked read: conv=%s, user=%s, upto_seq=%d, new_receipts=%d", conversationId, userId, upto.Seq, inserted)
	return nil
}

// UnreadCount returns the number of messages the user has not acknowledged,
// excluding the user's own messages
func (s *ReadReceiptService) UnreadCount(ctx context.Context, conversationId, userId string) (int64, error) {
	p, err := s.parts.Get(ctx, conversationId, userId)
	if err != nil {
		log.CtxError(ctx, "get participant failed: %v", err)
		return 0, errcode.ErrInternalServer
	}
	if p == nil || !p.IsActive {
		return 0, errcode.ErrNotAParticipant
	}

	count, err := s.receipts.CountUnread(ctx, conversationId, userId)
	if err != nil {
		log.CtxError(ctx, "count unread failed: conv=%s, user=%s, error=%v", conversationId, userId, err)
		return 0, errcode.ErrInternalServer
	}
	return count, nil
}
