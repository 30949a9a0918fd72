package service

import (
	"context"

	"github.com/plantline/convo/internal/entity"
)

// Store interfaces abstract the persistence layer so the services only
// depend on create/find/update operations. The gorm repositories in
// internal/repository are the production implementations.

// ConversationStore persists conversations and their summaries
type ConversationStore interface {
	// CreateDirect finds or creates the direct conversation for the pair,
	// reporting whether a new row was created
	CreateDirect(ctx context.Context, conv *entity.Conversation, participants []*entity.ConversationParticipant) (*entity.Conversation, bool, error)
	CreateGroup(ctx context.Context, conv *entity.Conversation, participants []*entity.ConversationParticipant) error
	// GetById returns nil without error when the conversation does not exist
	GetById(ctx context.Context, id string) (*entity.Conversation, error)
	ListForUser(ctx context.Context, userId string) ([]*entity.ConversationSummary, error)
}

// ParticipantStore persists conversation membership rows
type ParticipantStore interface {
	Get(ctx context.Context, conversationId, userId string) (*entity.ConversationParticipant, error)
	ListActive(ctx context.Context, conversationId string) ([]*entity.ConversationParticipant, error)
	Upsert(ctx context.Context, p *entity.ConversationParticipant) error
	Deactivate(ctx context.Context, conversationId, userId string, at int64) error
	AdvanceReadCursor(ctx context.Context, conversationId, userId string, at int64) error
}

// MessageStore persists the append-only message log
type MessageStore interface {
	// Append commits the message and its outbox event in one transaction
	Append(ctx context.Context, msg *entity.Message, evt *entity.OutboxEvent) error
	GetById(ctx context.Context, id string) (*entity.Message, error)
	ListBefore(ctx context.Context, conversationId string, beforeSeq int64, limit int) ([]*entity.Message, error)
	ApplyEdit(ctx context.Context, id, content string, at int64) error
	ApplyDelete(ctx context.Context, id string, at int64) error
}

// SeqAllocator allocates the per-conversation message order
type SeqAllocator interface {
	Alloc(ctx context.Context, conversationId string) (int64, error)
	Max(ctx context.Context, conversationId string) (int64, error)
}

// ReceiptStore persists read receipts and derives unread counts from them
type ReceiptStore interface {
	InsertUpTo(ctx context.Context, conversationId, userId string, uptoSeq, readAt int64) (int64, error)
	InsertOne(ctx context.Context, receipt *entity.MessageReadReceipt) error
	Has(ctx context.Context, messageId, userId string) (bool, error)
	CountUnread(ctx context.Context, conversationId, userId string) (int64, error)
}

// NotificationStore persists notification rows
type NotificationStore interface {
	Create(ctx context.Context, n *entity.Notification) error
	GetById(ctx context.Context, id string) (*entity.Notification, error)
	List(ctx context.Context, userId string, unreadOnly bool, beforeId string, limit int) ([]*entity.Notification, error)
	MarkRead(ctx context.Context, id string, at int64) error
}
