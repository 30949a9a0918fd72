package repository

import (
	"context"

	"github.com/plantline/convo/internal/entity"
	"github.com/plantline/convo/pkg/constant"
	"gorm.io/gorm"
)

// OutboxRepo is the repository for outbox events. Events are normally
// written by MessageRepo.Append inside the send transaction; this repo
// serves the dispatcher side.
type OutboxRepo struct {
	db *gorm.DB
}

// NewOutboxRepo creates a new OutboxRepo
func NewOutboxRepo(db *gorm.DB) *OutboxRepo {
	return &OutboxRepo{db: db}
}

// ClaimDue returns pending events whose next attempt is due, oldest first.
// A single dispatcher instance is assumed; dedup on the notification side
// keeps double delivery harmless regardless.
func (r *OutboxRepo) ClaimDue(ctx context.Context, now int64, limit int) ([]*entity.OutboxEvent, error) {
	if limit <= 0 {
		limit = 64
	}

	var events []*entity.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", constant.OutboxStatusPending, now).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// MarkDone marks an event as fully processed
func (r *OutboxRepo) MarkDone(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&entity.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     constant.OutboxStatusDone,
			"updated_at": entity.NowUnixMilli(),
		}).Error
}

// Reschedule records a failed attempt and pushes the event out for retry
func (r *OutboxRepo) Reschedule(ctx context.Context, id int64, attempts int32, nextAttemptAt int64, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&entity.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":        attempts,
			"next_attempt_at": nextAttemptAt,
			"last_error":      lastError,
			"updated_at":      entity.NowUnixMilli(),
		}).Error
}

// MarkFailed parks an event that exhausted its attempts
func (r *OutboxRepo) MarkFailed(ctx context.Context, id int64, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&entity.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     constant.OutboxStatusFailed,
			"last_error": lastError,
			"updated_at": entity.NowUnixMilli(),
		}).Error
}
