package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"maestro/internal/conversation/models"
	id "maestro/pkg/domain"
	"maestro/pkg/platform/sentinel"
	txcontext "maestro/pkg/platform/tx"
)

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func execer(ctx context.Context, db *sql.DB) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

func mapInsertErr(err error, what string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
		return sentinel.ErrConflict
	}
	return fmt.Errorf("insert %s: %w", what, err)
}

// ContactsPostgres implements the contact store over the contacts table.
// Queries honor an ambient transaction placed in context.
type ContactsPostgres struct {
	db *sql.DB
}

func NewContactsPostgres(db *sql.DB) *ContactsPostgres {
	return &ContactsPostgres{db: db}
}

const contactColumns = `id, tenant_id, channel, identifier, name, language, greet, created_at, updated_at`

func (s *ContactsPostgres) Create(ctx context.Context, contact *models.Contact) error {
	query := `
		INSERT INTO contacts
			(` + contactColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(contact.ID),
		uuid.UUID(contact.TenantID),
		string(contact.Channel),
		contact.Identifier,
		contact.Name,
		contact.Language,
		contact.Greet,
		contact.CreatedAt,
		contact.UpdatedAt,
	)
	if err != nil {
		return mapInsertErr(err, "contact")
	}
	return nil
}

func (s *ContactsPostgres) FindByID(ctx context.Context, contactID id.ContactID) (*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`
	return scanContact(execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(contactID)))
}

func (s *ContactsPostgres) FindByIdentifier(ctx context.Context, tenantID id.TenantID, channel models.Channel, identifier string) (*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts
		WHERE tenant_id = $1 AND channel = $2 AND identifier = $3`
	return scanContact(execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(tenantID), string(channel), identifier))
}

func scanContact(row *sql.Row) (*models.Contact, error) {
	var (
		contact   models.Contact
		contactID uuid.UUID
		tenantID  uuid.UUID
		channel   string
	)
	err := row.Scan(
		&contactID,
		&tenantID,
		&channel,
		&contact.Identifier,
		&contact.Name,
		&contact.Language,
		&contact.Greet,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("select contact: %w", err)
	}
	contact.ID = id.ContactID(contactID)
	contact.TenantID = id.TenantID(tenantID)
	contact.Channel = models.Channel(channel)
	return &contact, nil
}

// ConversationsPostgres implements the conversation store over the
// conversations table.
type ConversationsPostgres struct {
	db *sql.DB
}

func NewConversationsPostgres(db *sql.DB) *ConversationsPostgres {
	return &ConversationsPostgres{db: db}
}

const conversationColumns = `id, tenant_id, contact_id, agent_id, title, started_at, ended_at, archived`

func (s *ConversationsPostgres) Create(ctx context.Context, conversation *models.Conversation) error {
	query := `
		INSERT INTO conversations
			(` + conversationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(conversation.ID),
		uuid.UUID(conversation.TenantID),
		uuid.UUID(conversation.ContactID),
		agentArg(conversation.AgentID),
		conversation.Title,
		conversation.StartedAt,
		conversation.EndedAt,
		conversation.Archived,
	)
	if err != nil {
		return mapInsertErr(err, "conversation")
	}
	return nil
}

func (s *ConversationsPostgres) FindByID(ctx context.Context, conversationID id.ConversationID) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return scanConversation(execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(conversationID)))
}

func (s *ConversationsPostgres) FindActiveByContact(ctx context.Context, contactID id.ContactID) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations
		WHERE contact_id = $1 AND NOT archived
		ORDER BY started_at DESC
		LIMIT 1`
	return scanConversation(execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(contactID)))
}

func (s *ConversationsPostgres) Update(ctx context.Context, conversation *models.Conversation) error {
	query := `
		UPDATE conversations
		SET agent_id = $2, title = $3, ended_at = $4, archived = $5
		WHERE id = $1
	`
	res, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(conversation.ID),
		agentArg(conversation.AgentID),
		conversation.Title,
		conversation.EndedAt,
		conversation.Archived,
	)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanConversation(row *sql.Row) (*models.Conversation, error) {
	var (
		conversation   models.Conversation
		conversationID uuid.UUID
		tenantID       uuid.UUID
		contactID      uuid.UUID
		agentID        uuid.NullUUID
		endedAt        sql.NullTime
	)
	err := row.Scan(
		&conversationID,
		&tenantID,
		&contactID,
		&agentID,
		&conversation.Title,
		&conversation.StartedAt,
		&endedAt,
		&conversation.Archived,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("select conversation: %w", err)
	}
	conversation.ID = id.ConversationID(conversationID)
	conversation.TenantID = id.TenantID(tenantID)
	conversation.ContactID = id.ContactID(contactID)
	if agentID.Valid {
		a := id.AgentID(agentID.UUID)
		conversation.AgentID = &a
	}
	if endedAt.Valid {
		t := endedAt.Time
		conversation.EndedAt = &t
	}
	return &conversation, nil
}

func agentArg(agentID *id.AgentID) uuid.NullUUID {
	if agentID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*agentID), Valid: true}
}

// MessagesPostgres implements the message store over the messages table.
type MessagesPostgres struct {
	db *sql.DB
}

func NewMessagesPostgres(db *sql.DB) *MessagesPostgres {
	return &MessagesPostgres{db: db}
}

const messageColumns = `id, conversation_id, direction, content, status, external_id, sent_at, delivered_at`

func (s *MessagesPostgres) Create(ctx context.Context, message *models.Message) error {
	query := `
		INSERT INTO messages
			(` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(message.ID),
		uuid.UUID(message.ConversationID),
		string(message.Direction),
		message.Content,
		string(message.Status),
		message.ExternalID,
		message.SentAt,
		message.DeliveredAt,
	)
	if err != nil {
		return mapInsertErr(err, "message")
	}
	return nil
}

func (s *MessagesPostgres) Update(ctx context.Context, message *models.Message) error {
	query := `
		UPDATE messages
		SET status = $2, delivered_at = $3
		WHERE id = $1
	`
	res, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(message.ID),
		string(message.Status),
		message.DeliveredAt,
	)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *MessagesPostgres) ListByConversation(ctx context.Context, conversationID id.ConversationID) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE conversation_id = $1
		ORDER BY sent_at, id`
	rows, err := execer(ctx, s.db).QueryContext(ctx, query, uuid.UUID(conversationID))
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		var (
			message        models.Message
			messageID      uuid.UUID
			conversationID uuid.UUID
			direction      string
			status         string
			deliveredAt    sql.NullTime
		)
		if err := rows.Scan(
			&messageID,
			&conversationID,
			&direction,
			&message.Content,
			&status,
			&message.ExternalID,
			&message.SentAt,
			&deliveredAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		message.ID = id.MessageID(messageID)
		message.ConversationID = id.ConversationID(conversationID)
		message.Direction = models.Direction(direction)
		message.Status = models.MessageStatus(status)
		if deliveredAt.Valid {
			t := deliveredAt.Time
			message.DeliveredAt = &t
		}
		out = append(out, &message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}
