// Package service exposes agent roster management to the admin surface and
// translates store errors into coded domain errors.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"maestro/internal/agent/models"
	id "maestro/pkg/domain"
	dErrors "maestro/pkg/domain-errors"
	"maestro/pkg/platform/sentinel"
	"maestro/pkg/requestcontext"
)

// Store is the persistence collaborator for agents.
type Store interface {
	Create(ctx context.Context, agent *models.Agent) error
	FindByID(ctx context.Context, agentID id.AgentID) (*models.Agent, error)
	Update(ctx context.Context, agent *models.Agent) error
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Agent, error)
}

// Invalidator drops cached agent sets after writes. The redis cache
// decorator implements it; deployments without a cache pass nil.
type Invalidator interface {
	Invalidate(ctx context.Context, tenantID id.TenantID) error
}

// Service manages the agent roster of a tenant.
type Service struct {
	store  Store
	cache  Invalidator
	logger *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithCacheInvalidator(inv Invalidator) Option {
	return func(s *Service) { s.cache = inv }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "agent service requires a store")
	}
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateInput carries the admin-supplied agent definition.
type CreateInput struct {
	Name         string
	Description  string
	Kind         models.Kind
	Keywords     []string
	Priority     int
	SystemPrompt string
}

// Create registers a new agent for the tenant.
func (s *Service) Create(ctx context.Context, tenantID id.TenantID, in CreateInput) (*models.Agent, error) {
	agent, err := models.New(id.AgentID(uuid.New()), tenantID, in.Name, in.Kind, in.Keywords, in.Priority, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	agent.Description = in.Description
	agent.SystemPrompt = in.SystemPrompt

	if err := s.store.Create(ctx, agent); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "agent already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "creating agent")
	}
	s.invalidate(ctx, tenantID)
	s.logger.InfoContext(ctx, "agent created",
		"agent_id", agent.ID.String(),
		"tenant_id", tenantID.String(),
		"name", agent.Name,
	)
	return agent, nil
}

// List returns all agents of the tenant, enabled or not.
func (s *Service) List(ctx context.Context, tenantID id.TenantID) ([]*models.Agent, error) {
	agents, err := s.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "listing agents")
	}
	return agents, nil
}

// SetEnabled toggles whether the agent participates in routing.
func (s *Service) SetEnabled(ctx context.Context, agentID id.AgentID, enabled bool) (*models.Agent, error) {
	agent, err := s.store.FindByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "agent not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "loading agent")
	}
	if agent.Enabled == enabled {
		return agent, nil
	}
	agent.Enabled = enabled
	agent.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, agent); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "updating agent")
	}
	s.invalidate(ctx, agent.TenantID)
	return agent, nil
}

func (s *Service) invalidate(ctx context.Context, tenantID id.TenantID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID); err != nil {
		s.logger.WarnContext(ctx, "agent cache invalidation failed",
			"tenant_id", tenantID.String(),
			"error", err.Error(),
		)
	}
}
