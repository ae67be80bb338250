// Package store persists contacts, conversations, and messages. The
// in-memory variants back tests and development; postgres backs production.
package store

import (
	"context"
	"sort"
	"sync"

	"maestro/internal/conversation/models"
	id "maestro/pkg/domain"
	"maestro/pkg/platform/sentinel"
)

// ContactsInMemory holds contacts in a mutex-guarded map keyed by contact ID.
type ContactsInMemory struct {
	mu       sync.RWMutex
	contacts map[id.ContactID]*models.Contact
}

func NewContactsInMemory() *ContactsInMemory {
	return &ContactsInMemory{contacts: make(map[id.ContactID]*models.Contact)}
}

func (s *ContactsInMemory) Create(_ context.Context, contact *models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.contacts[contact.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.contacts {
		if existing.TenantID == contact.TenantID &&
			existing.Channel == contact.Channel &&
			existing.Identifier == contact.Identifier {
			return sentinel.ErrConflict
		}
	}
	cp := *contact
	s.contacts[contact.ID] = &cp
	return nil
}

func (s *ContactsInMemory) FindByID(_ context.Context, contactID id.ContactID) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contact, ok := s.contacts[contactID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *contact
	return &cp, nil
}

func (s *ContactsInMemory) FindByIdentifier(_ context.Context, tenantID id.TenantID, channel models.Channel, identifier string) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, contact := range s.contacts {
		if contact.TenantID == tenantID && contact.Channel == channel && contact.Identifier == identifier {
			cp := *contact
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// ConversationsInMemory holds conversations keyed by conversation ID.
type ConversationsInMemory struct {
	mu            sync.RWMutex
	conversations map[id.ConversationID]*models.Conversation
}

func NewConversationsInMemory() *ConversationsInMemory {
	return &ConversationsInMemory{conversations: make(map[id.ConversationID]*models.Conversation)}
}

func (s *ConversationsInMemory) Create(_ context.Context, conversation *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.conversations[conversation.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *conversation
	s.conversations[conversation.ID] = &cp
	return nil
}

func (s *ConversationsInMemory) FindByID(_ context.Context, conversationID id.ConversationID) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conversation, ok := s.conversations[conversationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *conversation
	return &cp, nil
}

// FindActiveByContact returns the most recently started conversation of the
// contact that is not archived.
func (s *ConversationsInMemory) FindActiveByContact(_ context.Context, contactID id.ContactID) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.Conversation
	for _, c := range s.conversations {
		if c.ContactID != contactID || c.Archived {
			continue
		}
		if latest == nil || c.StartedAt.After(latest.StartedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *ConversationsInMemory) Update(_ context.Context, conversation *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conversation.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *conversation
	s.conversations[conversation.ID] = &cp
	return nil
}

// MessagesInMemory holds messages keyed by message ID.
type MessagesInMemory struct {
	mu       sync.RWMutex
	messages map[id.MessageID]*models.Message
}

func NewMessagesInMemory() *MessagesInMemory {
	return &MessagesInMemory{messages: make(map[id.MessageID]*models.Message)}
}

func (s *MessagesInMemory) Create(_ context.Context, message *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.messages[message.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *message
	s.messages[message.ID] = &cp
	return nil
}

func (s *MessagesInMemory) Update(_ context.Context, message *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[message.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *message
	s.messages[message.ID] = &cp
	return nil
}

// ListByConversation returns the conversation's messages oldest first.
func (s *MessagesInMemory) ListByConversation(_ context.Context, conversationID id.ConversationID) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].SentAt.Before(out[j].SentAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}
