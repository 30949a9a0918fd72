package repository

import (
	"context"
	"errors"

	"github.com/plantline/convo/internal/entity"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationRepo is the repository for notification rows
type NotificationRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewNotificationRepo creates a new NotificationRepo
func NewNotificationRepo(db *gorm.DB, rdb *redis.Client) *NotificationRepo {
	return &NotificationRepo{db: db, rdb: rdb}
}

// Create inserts a notification. Message-driven notifications carry a
// message_id, and the (user_id, message_id, type) unique index turns
// fan-out retries into no-ops.
func (r *NotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "message_id"}, {Name: "type"}},
		DoNothing: true,
	}).Create(n).Error
}

// GetById gets a notification by id, nil if missing
func (r *NotificationRepo) GetById(ctx context.Context, id string) (*entity.Notification, error) {
	var n entity.Notification
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

// List returns a reverse-chronological page of the user's notifications,
// keyed on id to stay stable under concurrent inserts
func (r *NotificationRepo) List(ctx context.Context, userId string, unreadOnly bool, beforeId string, limit int) ([]*entity.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	q := r.db.WithContext(ctx).Where("user_id = ?", userId)
	if unreadOnly {
		q = q.Where("is_read = 0")
	}
	if beforeId != "" {
		q = q.Where("id < ?", beforeId)
	}

	var notifications []*entity.Notification
	err := q.Order("id DESC").Limit(limit).Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkRead flips is_read on a notification
func (r *NotificationRepo) MarkRead(ctx context.Context, id string, at int64) error {
	return r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_read":    true,
			"updated_at": at,
		}).Error
}
