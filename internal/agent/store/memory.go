// Package store provides agent directory implementations: an in-memory map
// for tests and development, a postgres store for production, and a redis
// read-through cache that fronts either.
package store

import (
	"context"
	"sort"
	"sync"

	id "maestro/pkg/domain"

	"maestro/internal/agent/models"
	"maestro/pkg/platform/sentinel"
)

// InMemory holds agents in a mutex-guarded map keyed by agent ID.
type InMemory struct {
	mu     sync.RWMutex
	agents map[id.AgentID]*models.Agent
}

func NewInMemory() *InMemory {
	return &InMemory{agents: make(map[id.AgentID]*models.Agent)}
}

func (s *InMemory) Create(_ context.Context, agent *models.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.agents[agent.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := cloneAgent(agent)
	s.agents[agent.ID] = cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, agentID id.AgentID) (*models.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agent, ok := s.agents[agentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneAgent(agent), nil
}

func (s *InMemory) Update(_ context.Context, agent *models.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[agent.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.agents[agent.ID] = cloneAgent(agent)
	return nil
}

// ListByTenant returns every agent of the tenant, enabled or not, in stable
// creation order.
func (s *InMemory) ListByTenant(_ context.Context, tenantID id.TenantID) ([]*models.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Agent
	for _, agent := range s.agents {
		if agent.TenantID == tenantID {
			out = append(out, cloneAgent(agent))
		}
	}
	sortAgents(out)
	return out, nil
}

// ListEnabled returns the tenant's enabled agents in stable creation order.
func (s *InMemory) ListEnabled(_ context.Context, tenantID id.TenantID) ([]*models.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Agent
	for _, agent := range s.agents {
		if agent.TenantID == tenantID && agent.Enabled {
			out = append(out, cloneAgent(agent))
		}
	}
	sortAgents(out)
	return out, nil
}

// sortAgents orders by creation time then ID so enumeration order, and with
// it score tie-breaking, stays deterministic across calls.
func sortAgents(agents []*models.Agent) {
	sort.SliceStable(agents, func(i, j int) bool {
		if !agents[i].CreatedAt.Equal(agents[j].CreatedAt) {
			return agents[i].CreatedAt.Before(agents[j].CreatedAt)
		}
		return agents[i].ID.String() < agents[j].ID.String()
	})
}

// Len reports how many agents the store holds, across all tenants.
func (s *InMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.agents)
}

func cloneAgent(a *models.Agent) *models.Agent {
	cp := *a
	cp.Keywords = append([]string{}, a.Keywords...)
	return &cp
}
