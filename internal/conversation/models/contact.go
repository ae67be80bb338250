// Package models defines the conversation aggregate: contacts reached over a
// channel, the conversations held with them, and the messages exchanged.
package models

import (
	"time"

	id "maestro/pkg/domain"
	dErrors "maestro/pkg/domain-errors"
)

// Channel names the transport a contact is reached on.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelWebChat  Channel = "webchat"
	ChannelEmail    Channel = "email"
)

// Contact is an external party identified by a channel-scoped identifier
// such as a phone number, email address, or chat user ID. The same person on
// two channels is two contacts.
type Contact struct {
	ID         id.ContactID `json:"id"`
	TenantID   id.TenantID  `json:"tenant_id"`
	Channel    Channel      `json:"channel"`
	Identifier string       `json:"identifier"`
	Name       string       `json:"name,omitempty"`
	Language   string       `json:"language,omitempty"`
	Greet      bool         `json:"greet"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func NewContact(contactID id.ContactID, tenantID id.TenantID, channel Channel, identifier, name string, now time.Time) (*Contact, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "contact requires a tenant")
	}
	if identifier == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "contact identifier cannot be empty")
	}
	return &Contact{
		ID:         contactID,
		TenantID:   tenantID,
		Channel:    channel,
		Identifier: identifier,
		Name:       name,
		Greet:      true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}
