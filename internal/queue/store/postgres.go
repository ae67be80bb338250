package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"maestro/internal/queue/models"
	id "maestro/pkg/domain"
	"maestro/pkg/platform/sentinel"
	txcontext "maestro/pkg/platform/tx"
)

// Postgres implements the queue over the queue_items and queue_dead_letters
// tables. ClaimNext uses FOR UPDATE SKIP LOCKED so concurrent workers never
// claim the same item.
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

const itemColumns = `id, tenant_id, kind, payload, status, attempts, max_attempts, last_error, created_at, processed_at`

func (s *Postgres) Create(ctx context.Context, item *models.Item) error {
	query := `
		INSERT INTO queue_items
			(` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(item.ID),
		uuid.UUID(item.TenantID),
		item.Kind,
		[]byte(item.Payload),
		string(item.Status),
		item.Attempts,
		item.MaxAttempts,
		item.LastError,
		item.CreatedAt,
		item.ProcessedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert queue item: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, itemID id.QueueItemID) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items WHERE id = $1`
	return scanItem(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(itemID)))
}

// ClaimNext picks the oldest claimable item and transitions it to processing
// in a single statement, so a crashed worker never strands a half-claimed row.
func (s *Postgres) ClaimNext(ctx context.Context, now time.Time) (*models.Item, error) {
	query := `
		UPDATE queue_items
		SET status = 'processing', attempts = attempts + 1, processed_at = $1
		WHERE id = (
			SELECT id FROM queue_items
			WHERE status = 'queued' AND attempts < max_attempts
			ORDER BY created_at, id
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + itemColumns
	return scanItem(s.execer(ctx).QueryRowContext(ctx, query, now))
}

func (s *Postgres) Update(ctx context.Context, item *models.Item) error {
	query := `
		UPDATE queue_items
		SET status = $2, attempts = $3, last_error = $4, processed_at = $5
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(item.ID),
		string(item.Status),
		item.Attempts,
		item.LastError,
		item.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("update queue item: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update queue item: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) Remove(ctx context.Context, itemID id.QueueItemID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM queue_items WHERE id = $1`, uuid.UUID(itemID))
	if err != nil {
		return fmt.Errorf("delete queue item: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete queue item: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) CreateDeadLetter(ctx context.Context, dl *models.DeadLetter) error {
	query := `
		INSERT INTO queue_dead_letters
			(id, item_id, tenant_id, kind, payload, attempts, reason, moved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(dl.ID),
		uuid.UUID(dl.ItemID),
		uuid.UUID(dl.TenantID),
		dl.Kind,
		[]byte(dl.Payload),
		dl.Attempts,
		dl.Reason,
		dl.MovedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}

func (s *Postgres) DeadLetters(ctx context.Context) ([]*models.DeadLetter, error) {
	query := `SELECT id, item_id, tenant_id, kind, payload, attempts, reason, moved_at
		FROM queue_dead_letters ORDER BY moved_at, id`
	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select dead letters: %w", err)
	}
	defer rows.Close()

	var out []*models.DeadLetter
	for rows.Next() {
		var (
			dl       models.DeadLetter
			dlID     uuid.UUID
			itemID   uuid.UUID
			tenantID uuid.UUID
			payload  []byte
		)
		if err := rows.Scan(&dlID, &itemID, &tenantID, &dl.Kind, &payload, &dl.Attempts, &dl.Reason, &dl.MovedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		dl.ID = id.QueueItemID(dlID)
		dl.ItemID = id.QueueItemID(itemID)
		dl.TenantID = id.TenantID(tenantID)
		dl.Payload = payload
		out = append(out, &dl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}
	return out, nil
}

func scanItem(row *sql.Row) (*models.Item, error) {
	var (
		item        models.Item
		itemID      uuid.UUID
		tenantID    uuid.UUID
		payload     []byte
		status      string
		processedAt sql.NullTime
	)
	err := row.Scan(
		&itemID,
		&tenantID,
		&item.Kind,
		&payload,
		&status,
		&item.Attempts,
		&item.MaxAttempts,
		&item.LastError,
		&item.CreatedAt,
		&processedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("select queue item: %w", err)
	}
	item.ID = id.QueueItemID(itemID)
	item.TenantID = id.TenantID(tenantID)
	item.Payload = payload
	item.Status = models.Status(status)
	if processedAt.Valid {
		t := processedAt.Time
		item.ProcessedAt = &t
	}
	return &item, nil
}
