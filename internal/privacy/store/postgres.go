package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"maestro/internal/privacy/models"
	id "maestro/pkg/domain"
	"maestro/pkg/platform/sentinel"
	txcontext "maestro/pkg/platform/tx"
)

// Postgres implements the record store over the pseudonymization_records
// table. Queries honor an ambient transaction placed in context.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const recordColumns = `id, token, original_value_hash, encrypted_value, data_kind,
	conversation_id, ai_request_id, created_at, reverted_at, expires_at`

func (s *Postgres) Create(ctx context.Context, record *models.Record) error {
	query := `
		INSERT INTO pseudonymization_records
			(id, token, original_value_hash, encrypted_value, data_kind,
			 conversation_id, ai_request_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(record.ID),
		record.Token,
		record.OriginalValueHash,
		record.EncryptedValue,
		string(record.DataKind),
		conversationArg(record.ConversationID),
		aiRequestArg(record.AIRequestID),
		record.CreatedAt,
		record.ExpiresAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert pseudonymization record: %w", err)
	}
	return nil
}

func (s *Postgres) FindByToken(ctx context.Context, token uuid.UUID) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM pseudonymization_records WHERE token = $1`
	record, err := scanRecord(s.execer(ctx).QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("select pseudonymization record: %w", err)
	}
	return record, nil
}

func (s *Postgres) FindByScope(ctx context.Context, scope models.Scope) ([]*models.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM pseudonymization_records
		WHERE ($1::uuid IS NULL OR conversation_id = $1)
		  AND ($2::uuid IS NULL OR ai_request_id = $2)
		ORDER BY created_at
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query,
		conversationArg(scope.ConversationID),
		aiRequestArg(scope.AIRequestID),
	)
	if err != nil {
		return nil, fmt.Errorf("select pseudonymization records: %w", err)
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pseudonymization record: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pseudonymization records: %w", err)
	}
	return out, nil
}

func (s *Postgres) Update(ctx context.Context, record *models.Record) error {
	// Records are immutable except for the reversal stamp.
	query := `UPDATE pseudonymization_records SET reverted_at = $2 WHERE token = $1`
	result, err := s.execer(ctx).ExecContext(ctx, query, record.Token, record.RevertedAt)
	if err != nil {
		return fmt.Errorf("update pseudonymization record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update pseudonymization record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	query := `DELETE FROM pseudonymization_records WHERE expires_at < $1`
	result, err := s.execer(ctx).ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired pseudonymization records: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired pseudonymization records: %w", err)
	}
	return int(affected), nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		record         models.Record
		recordID       uuid.UUID
		kind           string
		conversationID uuid.NullUUID
		aiRequestID    uuid.NullUUID
		revertedAt     sql.NullTime
	)
	err := row.Scan(
		&recordID,
		&record.Token,
		&record.OriginalValueHash,
		&record.EncryptedValue,
		&kind,
		&conversationID,
		&aiRequestID,
		&record.CreatedAt,
		&revertedAt,
		&record.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	record.ID = id.RecordID(recordID)
	record.DataKind = models.DataKind(kind)
	if conversationID.Valid {
		cid := id.ConversationID(conversationID.UUID)
		record.ConversationID = &cid
	}
	if aiRequestID.Valid {
		rid := id.AIRequestID(aiRequestID.UUID)
		record.AIRequestID = &rid
	}
	if revertedAt.Valid {
		t := revertedAt.Time
		record.RevertedAt = &t
	}
	return &record, nil
}

func conversationArg(v *id.ConversationID) any {
	if v == nil {
		return nil
	}
	return uuid.UUID(*v)
}

func aiRequestArg(v *id.AIRequestID) any {
	if v == nil {
		return nil
	}
	return uuid.UUID(*v)
}
