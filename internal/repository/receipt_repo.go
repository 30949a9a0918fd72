package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/plantline/convo/internal/entity"
	"github.com/plantline/convo/pkg/constant"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// unreadCacheTTL bounds staleness of the cached unread count; writes
// invalidate eagerly, the TTL covers anything that slips through.
const unreadCacheTTL = 10 * time.Second

// ReceiptRepo is the repository for read receipts. Receipt rows are the
// source of truth for unread state; the participant's last_read_at cursor
// is a denormalization maintained by the service layer.
type ReceiptRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewReceiptRepo creates a new ReceiptRepo
func NewReceiptRepo(db *gorm.DB, rdb *redis.Client) *ReceiptRepo {
	return &ReceiptRepo{db: db, rdb: rdb}
}

// InsertUpTo acknowledges every message in the conversation with seq up to
// uptoSeq that the user has not acknowledged yet, skipping the user's own
// messages. INSERT IGNORE against the (message_id, user_id) unique index
// makes the whole call idempotent: duplicate mark-read calls insert nothing
// and do not error. Returns the number of newly inserted receipts.
func (r *ReceiptRepo) InsertUpTo(ctx context.Context, conversationId, userId string, uptoSeq, readAt int64) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		INSERT IGNORE INTO message_read_receipts (message_id, user_id, conversation_id, seq, read_at)
		SELECT m.id, ?, m.conversation_id, m.seq, ?
		FROM messages m
		WHERE m.conversation_id = ? AND m.seq <= ? AND m.sender_id <> ?`,
		userId, readAt, conversationId, uptoSeq, userId)
	if res.Error != nil {
		return 0, res.Error
	}

	r.InvalidateUnread(ctx, conversationId, userId)
	return res.RowsAffected, nil
}

// InsertOne records a single receipt, ignoring duplicates
func (r *ReceiptRepo) InsertOne(ctx context.Context, receipt *entity.MessageReadReceipt) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(receipt).Error
}

// Has reports whether the user has acknowledged the message
func (r *ReceiptRepo) Has(ctx context.Context, messageId, userId string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.MessageReadReceipt{}).
		Where("message_id = ? AND user_id = ?", messageId, userId).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountUnread counts messages in the conversation with no receipt from the
// user, excluding the user's own messages and deleted ones. The result is
// cached in Redis for a short window.
func (r *ReceiptRepo) CountUnread(ctx context.Context, conversationId, userId string) (int64, error) {
	key := fmt.Sprintf(constant.RedisKeyUnread(), conversationId, userId)
	cached, err := r.rdb.Get(ctx, key).Int64()
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, err
	}

	var count int64
	err = r.db.WithContext(ctx).
		Model(&entity.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_deleted = 0", conversationId, userId).
		Where("NOT EXISTS (SELECT 1 FROM message_read_receipts rr WHERE rr.message_id = messages.id AND rr.user_id = ?)", userId).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	r.rdb.Set(ctx, key, count, unreadCacheTTL)
	return count, nil
}

// InvalidateUnread drops cached unread counts for the given users
func (r *ReceiptRepo) InvalidateUnread(ctx context.Context, conversationId string, userIds ...string) {
	for _, userId := range userIds {
		key := fmt.Sprintf(constant.RedisKeyUnread(), conversationId, userId)
		r.rdb.Del(ctx, key)
	}
}
