package constant

// Message types
const (
	MsgTypeText   = 1
	MsgTypeImage  = 2
	MsgTypeFile   = 3
	MsgTypeVideo  = 4
	MsgTypeSystem = 5
)

// MsgTypeName converts a message type to its wire name
func MsgTypeName(msgType int32) string {
	switch msgType {
	case MsgTypeText:
		return "TEXT"
	case MsgTypeImage:
		return "IMAGE"
	case MsgTypeFile:
		return "FILE"
	case MsgTypeVideo:
		return "VIDEO"
	case MsgTypeSystem:
		return "SYSTEM"
	default:
		return "UNKNOWN"
	}
}

// Notification types
const (
	NotifyTypeNewMessage       = "NEW_MESSAGE"
	NotifyTypeMention          = "MENTION"
	NotifyTypeSystem           = "SYSTEM"
	NotifyTypePerformanceAlert = "PERFORMANCE_ALERT"
)

// Outbox event kinds
const (
	OutboxKindMessageCommitted = "message.committed"
)

// Outbox event status
const (
	OutboxStatusPending = 0
	OutboxStatusDone    = 1
	OutboxStatusFailed  = 2
)

// Deleted-message content handling
const (
	DeletedContentBlank  = "blank"  // content scrubbed at delete time
	DeletedContentRetain = "retain" // content kept for audit, masked on read
)

// DeletedContentMask replaces the content of a deleted message on read
const DeletedContentMask = ""

// DirectPairPrefix prefixes the unique key of a direct conversation pair
const DirectPairPrefix = "d:"

// Redis key patterns (without prefix, use RedisKey*() to get full key)
const (
	redisKeySeqConversation = "seq:conv:%s"  // seq:conv:{conversation_id}
	redisKeyUnread          = "unread:%s:%s" // unread:{conversation_id}:{user_id}
)

// redisKeyPrefix is the global prefix for all Redis keys
var redisKeyPrefix = "convo:"

// InitRedisKeyPrefix initializes the Redis key prefix from config
func InitRedisKeyPrefix(prefix string) {
	if prefix != "" {
		redisKeyPrefix = prefix
	}
}

// GetRedisKeyPrefix returns the current Redis key prefix
func GetRedisKeyPrefix() string {
	return redisKeyPrefix
}

// Redis key getters with prefix
func RedisKeySeqConversation() string { return redisKeyPrefix + redisKeySeqConversation }
func RedisKeyUnread() string          { return redisKeyPrefix + redisKeyUnread }
