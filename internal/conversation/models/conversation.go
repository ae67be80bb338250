package models

import (
	"time"

	id "maestro/pkg/domain"
	dErrors "maestro/pkg/domain-errors"
)

// Conversation is an open-ended exchange with a contact. At most one
// conversation per contact is active (not archived) at a time; routing
// assigns an agent lazily, on the first resolved message.
type Conversation struct {
	ID        id.ConversationID `json:"id"`
	TenantID  id.TenantID       `json:"tenant_id"`
	ContactID id.ContactID      `json:"contact_id"`
	AgentID   *id.AgentID       `json:"agent_id,omitempty"`
	Title     string            `json:"title,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	EndedAt   *time.Time        `json:"ended_at,omitempty"`
	Archived  bool              `json:"archived"`
}

func NewConversation(conversationID id.ConversationID, tenantID id.TenantID, contactID id.ContactID, now time.Time) (*Conversation, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "conversation requires a tenant")
	}
	if contactID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "conversation requires a contact")
	}
	return &Conversation{
		ID:        conversationID,
		TenantID:  tenantID,
		ContactID: contactID,
		StartedAt: now,
	}, nil
}

// AssignAgent records which agent now handles the conversation. Returns true
// when the assignment changed.
func (c *Conversation) AssignAgent(agentID id.AgentID) bool {
	if c.AgentID != nil && *c.AgentID == agentID {
		return false
	}
	c.AgentID = &agentID
	return true
}

// Archive closes the conversation. Archiving twice is a no-op.
func (c *Conversation) Archive(now time.Time) {
	if c.Archived {
		return
	}
	c.Archived = true
	c.EndedAt = &now
}
