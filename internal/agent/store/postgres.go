package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"maestro/internal/agent/models"
	id "maestro/pkg/domain"
	"maestro/pkg/platform/sentinel"
	txcontext "maestro/pkg/platform/tx"
)

// Postgres implements the agent directory over the agents table. Keywords are
// stored as a JSONB array.
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

const agentColumns = `id, tenant_id, name, description, kind, system_prompt,
	keywords, priority, enabled, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, agent *models.Agent) error {
	keywords, err := json.Marshal(agent.Keywords)
	if err != nil {
		return fmt.Errorf("marshal agent keywords: %w", err)
	}
	query := `
		INSERT INTO agents
			(id, tenant_id, name, description, kind, system_prompt,
			 keywords, priority, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(agent.ID),
		uuid.UUID(agent.TenantID),
		agent.Name,
		agent.Description,
		string(agent.Kind),
		agent.SystemPrompt,
		keywords,
		agent.Priority,
		agent.Enabled,
		agent.CreatedAt,
		agent.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, agentID id.AgentID) (*models.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1`
	agent, err := scanAgent(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(agentID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("select agent: %w", err)
	}
	return agent, nil
}

func (s *Postgres) Update(ctx context.Context, agent *models.Agent) error {
	keywords, err := json.Marshal(agent.Keywords)
	if err != nil {
		return fmt.Errorf("marshal agent keywords: %w", err)
	}
	query := `
		UPDATE agents
		SET name = $2, description = $3, kind = $4, system_prompt = $5,
		    keywords = $6, priority = $7, enabled = $8, updated_at = $9
		WHERE id = $1
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(agent.ID),
		agent.Name,
		agent.Description,
		string(agent.Kind),
		agent.SystemPrompt,
		keywords,
		agent.Priority,
		agent.Enabled,
		agent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE tenant_id = $1 ORDER BY created_at, id`
	return s.list(ctx, query, uuid.UUID(tenantID))
}

func (s *Postgres) ListEnabled(ctx context.Context, tenantID id.TenantID) ([]*models.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE tenant_id = $1 AND enabled ORDER BY created_at, id`
	return s.list(ctx, query, uuid.UUID(tenantID))
}

func (s *Postgres) list(ctx context.Context, query string, args ...any) ([]*models.Agent, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select agents: %w", err)
	}
	defer rows.Close()

	var out []*models.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		out = append(out, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*models.Agent, error) {
	var (
		agent    models.Agent
		agentID  uuid.UUID
		tenantID uuid.UUID
		kind     string
		keywords []byte
	)
	err := row.Scan(
		&agentID,
		&tenantID,
		&agent.Name,
		&agent.Description,
		&kind,
		&agent.SystemPrompt,
		&keywords,
		&agent.Priority,
		&agent.Enabled,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	agent.ID = id.AgentID(agentID)
	agent.TenantID = id.TenantID(tenantID)
	agent.Kind = models.Kind(kind)
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &agent.Keywords); err != nil {
			return nil, fmt.Errorf("unmarshal agent keywords: %w", err)
		}
	}
	return &agent, nil
}
