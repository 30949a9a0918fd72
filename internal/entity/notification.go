package entity

import "encoding/json"

// Notification represents a per-recipient notification row.
// For message-driven notifications the (user_id, message_id, type) unique
// index deduplicates fan-out retries.
type Notification struct {
	Id        string  `json:"id" gorm:"column:id;primaryKey"`
	UserId    string  `json:"user_id" gorm:"column:user_id;index:idx_user_read;uniqueIndex:uk_user_msg_type"`
	Type      string  `json:"type" gorm:"column:type;size:32;uniqueIndex:uk_user_msg_type"`
	Title     string  `json:"title" gorm:"column:title"`
	Content   string  `json:"content" gorm:"column:content"`
	Data      *string `json:"data" gorm:"column:data;type:json"`
	MessageId *string `json:"message_id,omitempty" gorm:"column:message_id;uniqueIndex:uk_user_msg_type"`
	IsRead    bool    `json:"is_read" gorm:"column:is_read;index:idx_user_read"`
	CreatedAt int64   `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt int64   `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for Notification
func (Notification) TableName() string {
	return "notifications"
}

// SetData marshals v into the data column
func (n *Notification) SetData(v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s := string(raw)
	n.Data = &s
	return nil
}
