package models

import (
	"time"

	id "maestro/pkg/domain"
	dErrors "maestro/pkg/domain-errors"
)

// Direction tells whether a message came from the contact or went to them.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// MessageStatus tracks delivery progress of a message.
type MessageStatus string

const (
	StatusReceived   MessageStatus = "received"
	StatusProcessing MessageStatus = "processing"
	StatusSent       MessageStatus = "sent"
	StatusFailed     MessageStatus = "failed"
)

// Message is a single utterance within a conversation. Content is stored as
// received (or as replied); pseudonymized variants never reach this type.
type Message struct {
	ID             id.MessageID      `json:"id"`
	ConversationID id.ConversationID `json:"conversation_id"`
	Direction      Direction         `json:"direction"`
	Content        string            `json:"content"`
	Status         MessageStatus     `json:"status"`
	ExternalID     string            `json:"external_id,omitempty"`
	SentAt         time.Time         `json:"sent_at"`
	DeliveredAt    *time.Time        `json:"delivered_at,omitempty"`
}

func NewMessage(messageID id.MessageID, conversationID id.ConversationID, direction Direction, content string, sentAt time.Time) (*Message, error) {
	if conversationID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "message requires a conversation")
	}
	if content == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "message content cannot be empty")
	}
	status := StatusReceived
	if direction == DirectionOutbound {
		status = StatusSent
	}
	return &Message{
		ID:             messageID,
		ConversationID: conversationID,
		Direction:      direction,
		Content:        content,
		Status:         status,
		SentAt:         sentAt,
	}, nil
}
