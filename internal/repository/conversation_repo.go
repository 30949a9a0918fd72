package repository

import (
	"context"
	"errors"

	"github.com/plantline/convo/internal/entity"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepo is the repository for conversation operations
type ConversationRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewConversationRepo creates a new ConversationRepo
func NewConversationRepo(db *gorm.DB, rdb *redis.Client) *ConversationRepo {
	return &ConversationRepo{db: db, rdb: rdb}
}

// CreateDirect creates a direct conversation for an unordered user pair, or
// returns the existing one. The unique index on pair_key makes concurrent
// calls converge on a single row: the insert is attempted with
// ON CONFLICT DO NOTHING and the winner (or pre-existing row) is re-read.
// Both participant rows are upserted active in the same transaction.
func (r *ConversationRepo) CreateDirect(ctx context.Context, conv *entity.Conversation, participants []*entity.ConversationParticipant) (*entity.Conversation, bool, error) {
	now := entity.NowUnixMilli()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pair_key"}},
			DoNothing: true,
		}).Create(conv)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected > 0

		if !created {
			var existing entity.Conversation
			if err := tx.Where("pair_key = ?", *conv.PairKey).First(&existing).Error; err != nil {
				return err
			}
			*conv = existing
		}

		for _, p := range participants {
			p.ConversationId = conv.Id
			if err := upsertParticipant(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return conv, created, nil
}

// CreateGroup creates a group conversation and its initial participant set
func (r *ConversationRepo) CreateGroup(ctx context.Context, conv *entity.Conversation, participants []*entity.ConversationParticipant) error {
	now := entity.NowUnixMilli()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		for _, p := range participants {
			p.ConversationId = conv.Id
			if err := upsertParticipant(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetById gets a conversation by id, nil if missing
func (r *ConversationRepo) GetById(ctx context.Context, id string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// Touch bumps the conversation's updated_at, which drives list ordering
func (r *ConversationRepo) Touch(ctx context.Context, id string, at int64) error {
	return r.db.WithContext(ctx).
		Model(&entity.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", at).Error
}

// ListForUser lists conversations where the user has an active participant
// row, most recently active first, with last message seq and the user's
// unread count joined in. Unread counting is receipt-driven: a message is
// unread when no receipt row exists for it.
func (r *ConversationRepo) ListForUser(ctx context.Context, userId string) ([]*entity.ConversationSummary, error) {
	var results []*entity.ConversationSummary

	err := r.db.WithContext(ctx).
		Table("conversations c").
		Select(`
			c.*,
			COALESCE(sc.max_seq, 0) AS last_message_seq,
			(SELECT COUNT(*) FROM messages m
			 WHERE m.conversation_id = c.id
			   AND m.sender_id <> ?
			   AND m.is_deleted = 0
			   AND NOT EXISTS (
			     SELECT 1 FROM message_read_receipts rr
			     WHERE rr.message_id = m.id AND rr.user_id = ?
			   )) AS unread_count
		`, userId, userId).
		Joins("JOIN conversation_participants p ON p.conversation_id = c.id AND p.user_id = ? AND p.is_active = 1", userId).
		Joins("LEFT JOIN seq_conversations sc ON sc.conversation_id = c.id").
		Order("c.updated_at DESC").
		Scan(&results).Error

	if err != nil {
		return nil, err
	}
	return results, nil
}
