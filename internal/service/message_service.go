package service

import (
	"context"

	"github.com/mbeoliero/kit/log"
	"github.com/plantline/convo/internal/config"
	"github.com/plantline/convo/internal/dispatch"
	"github.com/plantline/convo/internal/entity"
	"github.com/plantline/convo/pkg/constant"
	"github.com/plantline/convo/pkg/errcode"
	"github.com/plantline/convo/pkg/idgen"
)

// MessageService is the message store: it appends, edits and soft-deletes
// messages and enforces sender authorization. Notification fan-out is
// decoupled through the outbox written inside the send transaction.
type MessageService struct {
	msgs     MessageStore
	convs    ConversationStore
	parts    ParticipantStore
	seqs     SeqAllocator
	receipts ReceiptStore
	cfg      *config.Config
}

// NewMessageService creates a new MessageService
func NewMessageService(msgs MessageStore, convs ConversationStore, parts ParticipantStore, seqs SeqAllocator, receipts ReceiptStore, cfg *config.Config) *MessageService {
	return &MessageService{
		msgs:     msgs,
		convs:    convs,
		parts:    parts,
		seqs:     seqs,
		receipts: receipts,
		cfg:      cfg,
	}
}

// SendMessageRequest represents a send message request
type SendMessageRequest struct {
	ConversationId string           `json:"conversation_id"`
	MsgType        int32            `json:"msg_type"`
	Content        string           `json:"content"`
	FileMeta       *entity.FileMeta `json:"file_meta,omitempty"`
}

func (r *SendMessageRequest) validate() error {
	if r.ConversationId == "" {
		return errcode.ErrInvalidParam
	}
	switch r.MsgType {
	case constant.MsgTypeText, constant.MsgTypeSystem:
		if r.Content == "" {
			return errcode.ErrInvalidParam
		}
	case constant.MsgTypeImage, constant.MsgTypeFile, constant.MsgTypeVideo:
		if r.FileMeta == nil || r.FileMeta.Url == "" {
			return errcode.ErrInvalidParam
		}
	default:
		return errcode.ErrInvalidParam
	}
	return nil
}

// SendMessage appends a message to the conversation. The message row, the
// durable seq, the conversation recency bump and the fan-out event commit
// in one transaction; the sender sees the message as sent once that commit
// succeeds, independent of notification delivery.
func (s *MessageService) SendMessage(ctx context.Context, senderId string, req *SendMessageRequest) (*entity.MessageInfo, error) {
	if err := req.validate(); err != nil {
		return nil, errcode.ErrInvalidParam
	}

	conv, err := s.convs.GetById(ctx, req.ConversationId)
	if err != nil {
		log.CtxError(ctx, "get conversation failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if conv == nil {
		return nil, errcode.ErrConvNotFound
	}

	p, err := s.parts.Get(ctx, req.ConversationId, senderId)
	if err != nil {
		log.CtxError(ctx, "get participant failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if p == nil || !p.IsActive {
		return nil, errcode.ErrNotAParticipant
	}

	seq, err := s.seqs.Alloc(ctx, req.ConversationId)
	if err != nil {
		log.CtxError(ctx, "seq allocation failed: conv=%s, error=%v", req.ConversationId, err)
		return nil, errcode.ErrSeqAllocFailed
	}

	id, err := idgen.NextID()
	if err != nil {
		log.CtxError(ctx, "generate message id failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	now := entity.NowUnixMilli()
	msg := &entity.Message{
		Id:             id,
		ConversationId: req.ConversationId,
		Seq:            seq,
		SenderId:       senderId,
		MsgType:        req.MsgType,
		Content:        req.Content,
		SendAt:         now,
	}
	msg.SetFileMeta(req.FileMeta)

	evt, err := s.buildOutboxEvent(conv, msg)
	if err != nil {
		log.CtxError(ctx, "build outbox event failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	if err := s.msgs.Append(ctx, msg, evt); err != nil {
		log.CtxError(ctx, "append message failed: conv=%s, seq=%d, error=%v", req.ConversationId, seq, err)
		return nil, errcode.ErrSendFailed
	}

	// The sender has read their own message. Failures here only affect the
	// sender's unread bookkeeping, never the send.
	selfReceipt := &entity.MessageReadReceipt{
		MessageId:      msg.Id,
		UserId:         senderId,
		ConversationId: msg.ConversationId,
		Seq:            msg.Seq,
		ReadAt:         now,
	}
	if err := s.receipts.InsertOne(ctx, selfReceipt); err != nil {
		log.CtxWarn(ctx, "self receipt failed: msg=%s, error=%v", msg.Id, err)
	}
	if err := s.parts.AdvanceReadCursor(ctx, msg.ConversationId, senderId, now); err != nil {
		log.CtxWarn(ctx, "advance sender cursor failed: msg=%s, error=%v", msg.Id, err)
	}

	log.CtxInfo(ctx, "message sent: conv=%s, sender=%s, seq=%d", req.ConversationId, senderId, seq)
	return msg.ToMessageInfo(), nil
}

func (s *MessageService) buildOutboxEvent(conv *entity.Conversation, msg *entity.Message) (*entity.OutboxEvent, error) {
	convName := ""
	if conv.Name != nil {
		convName = *conv.Name
	}

	evt := &dispatch.MessageCommittedEvent{
		ConversationId:   msg.ConversationId,
		ConversationName: convName,
		IsGroup:          conv.IsGroup,
		MessageId:        msg.Id,
		SenderId:         msg.SenderId,
		Seq:              msg.Seq,
		Preview:          msg.PreviewText(s.cfg.Message.PreviewLength),
		Mentions:         entity.ExtractMentions(msg.Content),
	}

	payload, err := evt.Encode()
	if err != nil {
		return nil, err
	}
	return &entity.OutboxEvent{
		Kind:    constant.OutboxKindMessageCommitted,
		Payload: payload,
	}, nil
}

// EditMessage replaces the content of the sender's own message
func (s *MessageService) EditMessage(ctx context.Context, messageId, editorId, newContent string) (*entity.MessageInfo, error) {
	if newContent == "" {
		return nil, errcode.ErrInvalidParam
	}

	msg, err := s.getMessage(ctx, messageId)
	if err != nil {
		return nil, err
	}
	if msg.SenderId != editorId {
		return nil, errcode.ErrForbidden
	}
	if msg.IsDeleted {
		return nil, errcode.ErrMessageGone
	}

	now := entity.NowUnixMilli()
	if err := s.msgs.ApplyEdit(ctx, messageId, newContent, now); err != nil {
		log.CtxError(ctx, "edit message failed: msg=%s, error=%v", messageId, err)
		return nil, errcode.ErrInternalServer
	}

	msg.Content = newContent
	msg.IsEdited = true
	msg.UpdatedAt = now

	log.CtxInfo(ctx, "message edited: msg=%s, editor=%s", messageId, editorId)
	return msg.ToMessageInfo(), nil
}

// DeleteMessage soft-deletes a message. asModerator is asserted by the
// caller's authorization layer; the sender may always delete their own.
func (s *MessageService) DeleteMessage(ctx context.Context, messageId, requesterId string, asModerator bool) error {
	msg, err := s.getMessage(ctx, messageId)
	if err != nil {
		return err
	}
	if msg.SenderId != requesterId && !asModerator {
		return errcode.ErrForbidden
	}
	if msg.IsDeleted {
		return errcode.ErrMessageGone
	}

	if err := s.msgs.ApplyDelete(ctx, messageId, entity.NowUnixMilli()); err != nil {
		log.CtxError(ctx, "delete message failed: msg=%s, error=%v", messageId, err)
		return errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "message deleted: msg=%s, requester=%s, moderator=%v", messageId, requesterId, asModerator)
	return nil
}

// ListMessagesRequest represents a list messages request
type ListMessagesRequest struct {
	ConversationId string `json:"conversation_id"`
	BeforeSeq      int64  `json:"before_seq"`
	Limit          int    `json:"limit"`
}

// ListMessages returns a reverse-chronological page of the conversation.
// Deleted messages are returned masked so clients can render a tombstone.
func (s *MessageService) ListMessages(ctx context.Context, userId string, req *ListMessagesRequest) ([]*entity.MessageInfo, error) {
	if req.ConversationId == "" {
		return nil, errcode.ErrInvalidParam
	}

	p, err := s.parts.Get(ctx, req.ConversationId, userId)
	if err != nil {
		log.CtxError(ctx, "get participant failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if p == nil || !p.IsActive {
		return nil, errcode.ErrNotAParticipant
	}

	messages, err := s.msgs.ListBefore(ctx, req.ConversationId, req.BeforeSeq, req.Limit)
	if err != nil {
		log.CtxError(ctx, "list messages failed: conv=%s, error=%v", req.ConversationId, err)
		return nil, errcode.ErrInternalServer
	}

	infos := make([]*entity.MessageInfo, 0, len(messages))
	for _, msg := range messages {
		infos = append(infos, msg.ToMessageInfo())
	}
	return infos, nil
}

func (s *MessageService) getMessage(ctx context.Context, messageId string) (*entity.Message, error) {
	msg, err := s.msgs.GetById(ctx, messageId)
	if err != nil {
		log.CtxError(ctx, "get message failed: id=%s, error=%v", messageId, err)
		return nil, errcode.ErrInternalServer
	}
	if msg == nil {
		return nil, errcode.ErrMessageNotFound
	}
	return msg, nil
}
