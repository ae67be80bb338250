package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"maestro/internal/conversation/models"
	"maestro/internal/conversation/store"
	id "maestro/pkg/domain"
	"maestro/pkg/platform/sentinel"
)

type ConversationStoreSuite struct {
	suite.Suite
	ctx context.Context
	now time.Time
}

func TestConversationStoreSuite(t *testing.T) {
	suite.Run(t, new(ConversationStoreSuite))
}

func (s *ConversationStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
}

func (s *ConversationStoreSuite) newContact(tenantID id.TenantID, identifier string) *models.Contact {
	contact, err := models.NewContact(
		id.ContactID(uuid.New()), tenantID, models.ChannelWhatsApp, identifier, "Maria", s.now)
	s.Require().NoError(err)
	return contact
}

func (s *ConversationStoreSuite) TestContactIdentifierUniquePerTenantAndChannel() {
	contacts := store.NewContactsInMemory()
	tenantID := id.TenantID(uuid.New())

	first := s.newContact(tenantID, "+5511999990000")
	s.Require().NoError(contacts.Create(s.ctx, first))

	dup := s.newContact(tenantID, "+5511999990000")
	s.ErrorIs(contacts.Create(s.ctx, dup), sentinel.ErrConflict)

	s.Run("same identifier on another channel is a different contact", func() {
		other, err := models.NewContact(
			id.ContactID(uuid.New()), tenantID, models.ChannelWebChat, "+5511999990000", "Maria", s.now)
		s.Require().NoError(err)
		s.NoError(contacts.Create(s.ctx, other))
	})

	s.Run("same identifier under another tenant is a different contact", func() {
		s.NoError(contacts.Create(s.ctx, s.newContact(id.TenantID(uuid.New()), "+5511999990000")))
	})

	s.Run("lookup by identifier", func() {
		found, err := contacts.FindByIdentifier(s.ctx, tenantID, models.ChannelWhatsApp, "+5511999990000")
		s.Require().NoError(err)
		s.Equal(first.ID, found.ID)

		_, err = contacts.FindByIdentifier(s.ctx, tenantID, models.ChannelWhatsApp, "+5511000000000")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *ConversationStoreSuite) TestFindActiveByContact() {
	conversations := store.NewConversationsInMemory()
	tenantID := id.TenantID(uuid.New())
	contactID := id.ContactID(uuid.New())

	older, err := models.NewConversation(id.ConversationID(uuid.New()), tenantID, contactID, s.now)
	s.Require().NoError(err)
	s.Require().NoError(conversations.Create(s.ctx, older))

	newer, err := models.NewConversation(id.ConversationID(uuid.New()), tenantID, contactID, s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Require().NoError(conversations.Create(s.ctx, newer))

	s.Run("picks the most recently started", func() {
		active, err := conversations.FindActiveByContact(s.ctx, contactID)
		s.Require().NoError(err)
		s.Equal(newer.ID, active.ID)
	})

	s.Run("archived conversations are invisible", func() {
		newer.Archive(s.now.Add(2 * time.Hour))
		s.Require().NoError(conversations.Update(s.ctx, newer))

		active, err := conversations.FindActiveByContact(s.ctx, contactID)
		s.Require().NoError(err)
		s.Equal(older.ID, active.ID)

		older.Archive(s.now.Add(2 * time.Hour))
		s.Require().NoError(conversations.Update(s.ctx, older))

		_, err = conversations.FindActiveByContact(s.ctx, contactID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("other contacts do not leak in", func() {
		_, err := conversations.FindActiveByContact(s.ctx, id.ContactID(uuid.New()))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *ConversationStoreSuite) TestStoredConversationIsACopy() {
	conversations := store.NewConversationsInMemory()
	conversation, err := models.NewConversation(
		id.ConversationID(uuid.New()), id.TenantID(uuid.New()), id.ContactID(uuid.New()), s.now)
	s.Require().NoError(err)
	s.Require().NoError(conversations.Create(s.ctx, conversation))

	conversation.Title = "mutated after create"

	found, err := conversations.FindByID(s.ctx, conversation.ID)
	s.Require().NoError(err)
	s.Empty(found.Title)
}

func (s *ConversationStoreSuite) TestMessagesListOldestFirst() {
	messages := store.NewMessagesInMemory()
	conversationID := id.ConversationID(uuid.New())

	second, err := models.NewMessage(
		id.MessageID(uuid.New()), conversationID, models.DirectionOutbound, "resposta", s.now.Add(time.Second))
	s.Require().NoError(err)
	s.Require().NoError(messages.Create(s.ctx, second))

	first, err := models.NewMessage(
		id.MessageID(uuid.New()), conversationID, models.DirectionInbound, "pergunta", s.now)
	s.Require().NoError(err)
	s.Require().NoError(messages.Create(s.ctx, first))

	listed, err := messages.ListByConversation(s.ctx, conversationID)
	s.Require().NoError(err)
	s.Require().Len(listed, 2)
	s.Equal(first.ID, listed[0].ID)
	s.Equal(second.ID, listed[1].ID)
	s.Equal(models.StatusReceived, listed[0].Status)
	s.Equal(models.StatusSent, listed[1].Status)
}
