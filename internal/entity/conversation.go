package entity

// Conversation represents a conversation
type Conversation struct {
	Id        string  `json:"id" gorm:"column:id;primaryKey"`
	Name      *string `json:"name" gorm:"column:name"`
	IsGroup   bool    `json:"is_group" gorm:"column:is_group"`
	PairKey   *string `json:"-" gorm:"column:pair_key;uniqueIndex:uk_pair_key"`
	CreatedBy *string `json:"created_by" gorm:"column:created_by"`
	CreatedAt int64   `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt int64   `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for Conversation
func (Conversation) TableName() string {
	return "conversations"
}

// ConversationParticipant represents a user's membership in a conversation.
// Removal flips is_active instead of deleting the row, so message history
// and read state survive a leave/rejoin cycle.
type ConversationParticipant struct {
	Id             int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;uniqueIndex:uk_conv_user"`
	UserId         string `json:"user_id" gorm:"column:user_id;uniqueIndex:uk_conv_user"`
	JoinedAt       int64  `json:"joined_at" gorm:"column:joined_at"`
	LastReadAt     *int64 `json:"last_read_at" gorm:"column:last_read_at"`
	IsActive       bool   `json:"is_active" gorm:"column:is_active"`
	CreatedAt      int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt      int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for ConversationParticipant
func (ConversationParticipant) TableName() string {
	return "conversation_participants"
}

// ConversationSummary represents a conversation row in a user's list,
// with the latest message seq and the user's unread count joined in
type ConversationSummary struct {
	Conversation
	LastMessageSeq int64 `json:"last_message_seq"`
	UnreadCount    int64 `json:"unread_count"`
}

// ConversationInfo represents conversation info for API response
type ConversationInfo struct {
	Id             string   `json:"id"`
	Name           *string  `json:"name,omitempty"`
	IsGroup        bool     `json:"is_group"`
	CreatedBy      *string  `json:"created_by,omitempty"`
	Participants   []string `json:"participants,omitempty"`
	LastMessageSeq int64    `json:"last_message_seq"`
	UnreadCount    int64    `json:"unread_count"`
	UpdatedAt      int64    `json:"updated_at"`
}
