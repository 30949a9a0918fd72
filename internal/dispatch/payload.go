package dispatch

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// MessageCommittedEvent is the outbox payload written in the send
// transaction and consumed by the dispatcher. It carries everything the
// fan-out needs so the dispatcher does not have to re-read the message.
type MessageCommittedEvent struct {
	ConversationId   string   `json:"conversation_id" validate:"required"`
	ConversationName string   `json:"conversation_name,omitempty"`
	IsGroup          bool     `json:"is_group"`
	MessageId        string   `json:"message_id" validate:"required"`
	SenderId         string   `json:"sender_id" validate:"required"`
	Seq              int64    `json:"seq" validate:"gt=0"`
	Preview          string   `json:"preview"`
	Mentions         []string `json:"mentions,omitempty"`
}

// Encode marshals the event for the outbox payload column
func (e *MessageCommittedEvent) Encode() (string, error) {
	if err := validate.Struct(e); err != nil {
		return "", err
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeMessageCommitted unmarshals and validates an outbox payload
func DecodeMessageCommitted(payload string) (*MessageCommittedEvent, error) {
	var e MessageCommittedEvent
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return nil, err
	}
	if err := validate.Struct(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

// MessageRef is the data payload of NEW_MESSAGE and MENTION notifications
type MessageRef struct {
	ConversationId string `json:"conversation_id" validate:"required"`
	MessageId      string `json:"message_id" validate:"required"`
}

// SystemAlertPayload is the data payload of SYSTEM notifications
type SystemAlertPayload struct {
	Source string                 `json:"source" validate:"required"`
	Extra  map[string]interface{} `json:"extra,omitempty"`
}

// PerformanceAlertPayload is the data payload of PERFORMANCE_ALERT
// notifications raised by the workforce/performance subsystems
type PerformanceAlertPayload struct {
	WorkerId string                 `json:"worker_id" validate:"required"`
	RecordId string                 `json:"record_id,omitempty"`
	Metric   string                 `json:"metric,omitempty"`
	Extra    map[string]interface{} `json:"extra,omitempty"`
}

// ValidatePayload checks a typed notification payload at the emission
// boundary, before anything is persisted
func ValidatePayload(payload interface{}) error {
	return validate.Struct(payload)
}
