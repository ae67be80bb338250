// Package domain defines strongly typed identifiers shared across modules.
//
// Each identifier is a distinct named type over uuid.UUID so the compiler
// rejects cross-entity assignments (a TenantID can never be passed where an
// AgentID is expected). Parse helpers enforce the invariant that identifiers
// are valid, non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "maestro/pkg/domain-errors"
)

type (
	// TenantID identifies the isolation boundary ("space") that scopes
	// agents, channels, and conversations.
	TenantID uuid.UUID

	// AgentID identifies a keyword-addressable specialist agent.
	AgentID uuid.UUID

	// ContactID identifies an external sender resolved from a channel.
	ContactID uuid.UUID

	// ConversationID identifies a thread of messages with one contact.
	ConversationID uuid.UUID

	// MessageID identifies a single inbound or outbound message.
	MessageID uuid.UUID

	// RecordID identifies a pseudonymization record row.
	RecordID uuid.UUID

	// AIRequestID identifies one request sent to a language-model provider.
	AIRequestID uuid.UUID

	// QueueItemID identifies an entry in the inbound processing queue.
	QueueItemID uuid.UUID
)

func (id TenantID) String() string       { return uuid.UUID(id).String() }
func (id AgentID) String() string        { return uuid.UUID(id).String() }
func (id ContactID) String() string      { return uuid.UUID(id).String() }
func (id ConversationID) String() string { return uuid.UUID(id).String() }
func (id MessageID) String() string      { return uuid.UUID(id).String() }
func (id RecordID) String() string       { return uuid.UUID(id).String() }
func (id AIRequestID) String() string    { return uuid.UUID(id).String() }
func (id QueueItemID) String() string    { return uuid.UUID(id).String() }

// MarshalText renders identifiers in canonical UUID form so JSON payloads
// carry strings rather than raw byte arrays.
func (id TenantID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id AgentID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id ContactID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id ConversationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id MessageID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id RecordID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id AIRequestID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id QueueItemID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }

func (id *TenantID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = TenantID(u)
	return err
}

func (id *AgentID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = AgentID(u)
	return err
}

func (id *ContactID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = ContactID(u)
	return err
}

func (id *ConversationID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = ConversationID(u)
	return err
}

func (id *MessageID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = MessageID(u)
	return err
}

func (id *RecordID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = RecordID(u)
	return err
}

func (id *AIRequestID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = AIRequestID(u)
	return err
}

func (id *QueueItemID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	*id = QueueItemID(u)
	return err
}

func (id TenantID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id AgentID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ContactID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ConversationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id MessageID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id AIRequestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id QueueItemID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// parseUUID validates that the input is a well-formed, non-nil UUID.
func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "identifier cannot be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "identifier is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "identifier cannot be the nil UUID")
	}
	return parsed, nil
}

func ParseTenantID(raw string) (TenantID, error) {
	u, err := parseUUID(raw)
	return TenantID(u), err
}

func ParseAgentID(raw string) (AgentID, error) {
	u, err := parseUUID(raw)
	return AgentID(u), err
}

func ParseContactID(raw string) (ContactID, error) {
	u, err := parseUUID(raw)
	return ContactID(u), err
}

func ParseConversationID(raw string) (ConversationID, error) {
	u, err := parseUUID(raw)
	return ConversationID(u), err
}

func ParseMessageID(raw string) (MessageID, error) {
	u, err := parseUUID(raw)
	return MessageID(u), err
}

func ParseAIRequestID(raw string) (AIRequestID, error) {
	u, err := parseUUID(raw)
	return AIRequestID(u), err
}
