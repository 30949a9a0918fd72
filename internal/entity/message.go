package entity

import "github.com/plantline/convo/pkg/constant"

// FileMeta carries attachment metadata for IMAGE/FILE/VIDEO messages
type FileMeta struct {
	Url       string `json:"url,omitempty"`
	Name      string `json:"name,omitempty"`
	Size      int64  `json:"size,omitempty"`
	StorageId string `json:"storage_id,omitempty"`
}

// Message represents a message in a conversation.
// Rows are append-only: after creation only the edit flags (is_edited + content)
// and the delete flag may change.
type Message struct {
	Id             string `json:"id" gorm:"column:id;primaryKey"`
	ConversationId string `json:"conversation_id" gorm:"column:conversation_id;uniqueIndex:uk_conv_seq"`
	Seq            int64  `json:"seq" gorm:"column:seq;uniqueIndex:uk_conv_seq"`
	SenderId       string `json:"sender_id" gorm:"column:sender_id"`
	MsgType        int32  `json:"msg_type" gorm:"column:msg_type"`
	Content        string `json:"content" gorm:"column:content"`
	FileUrl        string `json:"file_url,omitempty" gorm:"column:file_url"`
	FileName       string `json:"file_name,omitempty" gorm:"column:file_name"`
	FileSize       int64  `json:"file_size,omitempty" gorm:"column:file_size"`
	FileStorageId  string `json:"file_storage_id,omitempty" gorm:"column:file_storage_id"`
	IsEdited       bool   `json:"is_edited" gorm:"column:is_edited"`
	IsDeleted      bool   `json:"is_deleted" gorm:"column:is_deleted"`
	SendAt         int64  `json:"send_at" gorm:"column:send_at"`
	CreatedAt      int64  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt      int64  `json:"updated_at" gorm:"column:updated_at"`
}

// TableName returns the table name for Message
func (Message) TableName() string {
	return "messages"
}

// GetFileMeta returns the attachment metadata as a struct
func (m *Message) GetFileMeta() *FileMeta {
	if m.FileUrl == "" && m.FileStorageId == "" {
		return nil
	}
	return &FileMeta{
		Url:       m.FileUrl,
		Name:      m.FileName,
		Size:      m.FileSize,
		StorageId: m.FileStorageId,
	}
}

// SetFileMeta sets the attachment metadata from a struct
func (m *Message) SetFileMeta(f *FileMeta) {
	if f == nil {
		return
	}
	m.FileUrl = f.Url
	m.FileName = f.Name
	m.FileSize = f.Size
	m.FileStorageId = f.StorageId
}

// PreviewText returns the notification preview for this message
func (m *Message) PreviewText(limit int) string {
	switch m.MsgType {
	case constant.MsgTypeImage:
		return "[image]"
	case constant.MsgTypeFile:
		if m.FileName != "" {
			return "[file] " + m.FileName
		}
		return "[file]"
	case constant.MsgTypeVideo:
		return "[video]"
	default:
		return Preview(m.Content, limit)
	}
}

// MessageInfo represents message info for API response
type MessageInfo struct {
	Id             string    `json:"id"`
	ConversationId string    `json:"conversation_id"`
	Seq            int64     `json:"seq"`
	SenderId       string    `json:"sender_id"`
	MsgType        int32     `json:"msg_type"`
	Content        string    `json:"content"`
	FileMeta       *FileMeta `json:"file_meta,omitempty"`
	IsEdited       bool      `json:"is_edited"`
	IsDeleted      bool      `json:"is_deleted"`
	SendAt         int64     `json:"send_at"`
}

// ToMessageInfo converts Message to MessageInfo, masking deleted content
func (m *Message) ToMessageInfo() *MessageInfo {
	info := &MessageInfo{
		Id:             m.Id,
		ConversationId: m.ConversationId,
		Seq:            m.Seq,
		SenderId:       m.SenderId,
		MsgType:        m.MsgType,
		Content:        m.Content,
		FileMeta:       m.GetFileMeta(),
		IsEdited:       m.IsEdited,
		IsDeleted:      m.IsDeleted,
		SendAt:         m.SendAt,
	}
	if m.IsDeleted {
		info.Content = constant.DeletedContentMask
		info.FileMeta = nil
	}
	return info
}
