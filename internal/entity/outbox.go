package entity

// OutboxEvent is a pending piece of fan-out work, written in the same
// transaction as the message it belongs to and consumed by the dispatcher.
type OutboxEvent struct {
	Id            int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Kind          string `json:"kind" gorm:"column:kind;size:64"`
	Payload       string `json:"payload" gorm:"column:payload;type:json"`
	Status        int32  `json:"status" gorm:"column:status;index:idx_status_next"`
	Attempts      int32  `json:"attempts" gorm:"column:attempts"`
	NextAttemptAt int64  `json:"next_attempt_at" gorm:"column:next_attempt_at;index:idx_status_next"`
	LastError     string `json:"last_error" gorm:"column:last_error"`
	CreatedAt     int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt     int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for OutboxEvent
func (OutboxEvent) TableName() string {
	return "outbox_events"
}

// SeqConversation tracks the max allocated seq per conversation.
// Redis holds the live counter; this row is the durable copy synced
// inside the send transaction.
type SeqConversation struct {
	Id             int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;uniqueIndex:uk_conversation"`
	MaxSeq         int64  `json:"max_seq" gorm:"column:max_seq"`
	CreatedAt      int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt      int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for SeqConversation
func (SeqConversation) TableName() string {
	return "seq_conversations"
}
