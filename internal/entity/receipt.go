package entity

// MessageReadReceipt records that a user has seen a specific message.
// One row per (message, user), created once and never updated. The unique
// index makes concurrent mark-read calls resolve via insert-ignore.
type MessageReadReceipt struct {
	Id             int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	MessageId      string `json:"message_id" gorm:"column:message_id;uniqueIndex:uk_msg_user"`
	UserId         string `json:"user_id" gorm:"column:user_id;uniqueIndex:uk_msg_user"`
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;index:idx_conv_user"`
	Seq            int64  `json:"seq" gorm:"column:seq"`
	ReadAt         int64  `json:"read_at" gorm:"column:read_at"`
}

// TableName returns the table name for MessageReadReceipt
func (MessageReadReceipt) TableName() string {
	return "message_read_receipts"
}
