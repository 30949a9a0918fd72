package repository

import (
	"github.com/plantline/convo/internal/entity"
)

// AutoMigrate creates or updates the schema for all owned tables
func (r *Repositories) AutoMigrate() error {
	return r.DB.AutoMigrate(
		&entity.Conversation{},
		&entity.ConversationParticipant{},
		&entity.Message{},
		&entity.MessageReadReceipt{},
		&entity.Notification{},
		&entity.OutboxEvent{},
		&entity.SeqConversation{},
	)
}
