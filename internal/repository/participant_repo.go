package repository

import (
	"context"
	"errors"

	"github.com/plantline/convo/internal/entity"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ParticipantRepo is the repository for conversation membership rows
type ParticipantRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewParticipantRepo creates a new ParticipantRepo
func NewParticipantRepo(db *gorm.DB, rdb *redis.Client) *ParticipantRepo {
	return &ParticipantRepo{db: db, rdb: rdb}
}

// upsertParticipant inserts a membership row or reactivates an existing one.
// Rejoining refreshes joined_at but keeps last_read_at, so history read
// before leaving stays read.
func upsertParticipant(ctx context.Context, tx *gorm.DB, p *entity.ConversationParticipant) error {
	now := entity.NowUnixMilli()
	p.CreatedAt = now
	p.UpdatedAt = now

	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"is_active":  true,
			"joined_at":  p.JoinedAt,
			"updated_at": now,
		}),
	}).Create(p).Error
}

// Upsert inserts or reactivates a membership row
func (r *ParticipantRepo) Upsert(ctx context.Context, p *entity.ConversationParticipant) error {
	return upsertParticipant(ctx, r.db, p)
}

// Get gets a membership row, nil if missing
func (r *ParticipantRepo) Get(ctx context.Context, conversationId, userId string) (*entity.ConversationParticipant, error) {
	var p entity.ConversationParticipant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ListActive lists active participants of a conversation
func (r *ParticipantRepo) ListActive(ctx context.Context, conversationId string) ([]*entity.ConversationParticipant, error) {
	var participants []*entity.ConversationParticipant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND is_active = 1", conversationId).
		Order("joined_at ASC").
		Find(&participants).Error
	if err != nil {
		return nil, err
	}
	return participants, nil
}

// Deactivate soft-removes a participant, preserving the row and its read state
func (r *ParticipantRepo) Deactivate(ctx context.Context, conversationId, userId string, at int64) error {
	return r.db.WithContext(ctx).
		Model(&entity.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": at,
		}).Error
}

// AdvanceReadCursor moves last_read_at forward, never backward
func (r *ParticipantRepo) AdvanceReadCursor(ctx context.Context, conversationId, userId string, at int64) error {
	return r.db.WithContext(ctx).
		Model(&entity.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationId, userId).
		Updates(map[string]interface{}{
			"last_read_at": gorm.Expr("GREATEST(COALESCE(last_read_at, 0), ?)", at),
			"updated_at":   entity.NowUnixMilli(),
		}).Error
}
