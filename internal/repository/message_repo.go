package repository

import (
	"context"
	"errors"

	"github.com/plantline/convo/internal/config"
	"github.com/plantline/convo/internal/entity"
	"github.com/plantline/convo/pkg/constant"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepo is the repository for message operations
type MessageRepo struct {
	db  *gorm.DB
	rdb *redis.Client
	cfg *config.Config
}

// NewMessageRepo creates a new MessageRepo
func NewMessageRepo(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *MessageRepo {
	return &MessageRepo{db: db, rdb: rdb, cfg: cfg}
}

// Append durably stores a message together with its fan-out event.
// One transaction covers the message row, the durable seq sync, the
// conversation recency bump and the outbox row: either the message is
// committed with its event, or nothing is.
func (r *MessageRepo) Append(ctx context.Context, msg *entity.Message, evt *entity.OutboxEvent) error {
	now := entity.NowUnixMilli()
	msg.CreatedAt = now
	msg.UpdatedAt = now

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		if err := syncSeqConversation(ctx, tx, msg.ConversationId, msg.Seq); err != nil {
			return err
		}
		if err := tx.Model(&entity.Conversation{}).
			Where("id = ?", msg.ConversationId).
			Update("updated_at", now).Error; err != nil {
			return err
		}
		if evt != nil {
			evt.Status = constant.OutboxStatusPending
			evt.NextAttemptAt = now
			if err := tx.Create(evt).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetById gets a message by id, nil if missing
func (r *MessageRepo) GetById(ctx context.Context, id string) (*entity.Message, error) {
	var msg entity.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// ListBefore returns a reverse-chronological page keyed on seq.
// beforeSeq <= 0 starts from the latest message. Seq-keyed paging stays
// stable under concurrent inserts, unlike offset paging.
func (r *MessageRepo) ListBefore(ctx context.Context, conversationId string, beforeSeq int64, limit int) ([]*entity.Message, error) {
	maxPage := r.cfg.Message.MaxPageSize
	if limit <= 0 || limit > maxPage {
		limit = maxPage
	}

	q := r.db.WithContext(ctx).Where("conversation_id = ?", conversationId)
	if beforeSeq > 0 {
		q = q.Where("seq < ?", beforeSeq)
	}

	var messages []*entity.Message
	err := q.Order("seq DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// ApplyEdit replaces content and flags the message as edited
func (r *MessageRepo) ApplyEdit(ctx context.Context, id, content string, at int64) error {
	return r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":    content,
			"is_edited":  true,
			"updated_at": at,
		}).Error
}

// ApplyDelete soft-deletes the message. Content handling follows the
// configured policy: "blank" scrubs stored content and attachment metadata,
// "retain" keeps them and relies on read-time masking.
func (r *MessageRepo) ApplyDelete(ctx context.Context, id string, at int64) error {
	updates := map[string]interface{}{
		"is_deleted": true,
		"updated_at": at,
	}
	if r.cfg.Message.DeletedContentMode == constant.DeletedContentBlank {
		updates["content"] = ""
		updates["file_url"] = ""
		updates["file_name"] = ""
		updates["file_size"] = 0
		updates["file_storage_id"] = ""
	}
	return r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// syncSeqConversation upserts the durable per-conversation max seq.
// GREATEST keeps the counter monotonic even if transactions commit out of
// allocation order.
func syncSeqConversation(ctx context.Context, tx *gorm.DB, conversationId string, maxSeq int64) error {
	seqConv := &entity.SeqConversation{
		ConversationId: conversationId,
		MaxSeq:         maxSeq,
	}

	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "conversation_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"max_seq": gorm.Expr("GREATEST(max_seq, ?)", maxSeq),
		}),
	}).Create(seqConv).Error
}
