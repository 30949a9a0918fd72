package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/plantline/convo/internal/entity"
	"github.com/plantline/convo/pkg/constant"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SeqRepo allocates per-conversation sequence numbers. The live counter
// lives in Redis (INCR), the durable copy in MySQL synced inside the
// send transaction. Seq order is the total order of messages within a
// conversation.
type SeqRepo struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewSeqRepo creates a new SeqRepo
func NewSeqRepo(db *gorm.DB, rdb *redis.Client) *SeqRepo {
	return &SeqRepo{db: db, rdb: rdb}
}

// Alloc allocates a new sequence number for a conversation using Redis INCR
func (r *SeqRepo) Alloc(ctx context.Context, conversationId string) (int64, error) {
	key := fmt.Sprintf(constant.RedisKeySeqConversation(), conversationId)
	seq, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if seq == 1 {
		// Fresh counter: it may be fresh because the key expired or Redis
		// was flushed, in which case we must resume from the durable copy.
		durable, derr := r.durableMaxSeq(ctx, conversationId)
		if derr != nil {
			return 0, derr
		}
		if durable >= seq {
			seq, err = r.rdb.IncrBy(ctx, key, durable).Result()
			if err != nil {
				return 0, err
			}
		}
	}
	return seq, nil
}

// Max gets the current max sequence for a conversation
func (r *SeqRepo) Max(ctx context.Context, conversationId string) (int64, error) {
	key := fmt.Sprintf(constant.RedisKeySeqConversation(), conversationId)
	seq, err := r.rdb.Get(ctx, key).Int64()
	if err == nil {
		return seq, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, err
	}

	maxSeq, err := r.durableMaxSeq(ctx, conversationId)
	if err != nil {
		return 0, err
	}

	// Restore to Redis
	r.rdb.Set(ctx, key, maxSeq, 0)
	return maxSeq, nil
}

// durableMaxSeq reads the MySQL copy of the counter
func (r *SeqRepo) durableMaxSeq(ctx context.Context, conversationId string) (int64, error) {
	var seqConv entity.SeqConversation
	err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationId).First(&seqConv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return seqConv.MaxSeq, nil
}

// SyncWithTx persists the allocated seq to MySQL within a transaction
func (r *SeqRepo) SyncWithTx(ctx context.Context, tx *gorm.DB, conversationId string, maxSeq int64) error {
	return syncSeqConversation(ctx, tx, conversationId, maxSeq)
}
