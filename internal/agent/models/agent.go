package models

import (
	"time"

	id "maestro/pkg/domain"
	dErrors "maestro/pkg/domain-errors"
)

// Kind labels the specialization of an agent.
type Kind string

const (
	KindGeneral        Kind = "general"
	KindSupport        Kind = "support"
	KindFinance        Kind = "finance"
	KindHospitality    Kind = "hospitality"
	KindSharedProperty Kind = "shared_property"
)

// Wildcard is the universal keyword that marks a fallback agent. Wildcard
// agents never compete on keyword overlap; they score a fixed low baseline.
const Wildcard = "*"

// Agent is a tenant-scoped candidate handler addressed by keywords.
//
// Invariants:
//   - Name is non-empty and at most 128 characters
//   - TenantID is immutable after construction
//   - Only enabled agents are considered by intent resolution
//   - An agent with no keywords never matches and never falls back
type Agent struct {
	ID           id.AgentID  `json:"id"`
	TenantID     id.TenantID `json:"tenant_id"`
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	Kind         Kind        `json:"kind"`
	SystemPrompt string      `json:"system_prompt,omitempty"`
	Keywords     []string    `json:"keywords"`
	Priority     int         `json:"priority"`
	Enabled      bool        `json:"enabled"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func New(agentID id.AgentID, tenantID id.TenantID, name string, kind Kind, keywords []string, priority int, now time.Time) (*Agent, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "agent name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "agent name must be 128 characters or less")
	}
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "agent requires a tenant")
	}
	return &Agent{
		ID:        agentID,
		TenantID:  tenantID,
		Name:      name,
		Kind:      kind,
		Keywords:  keywords,
		Priority:  priority,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsWildcard reports whether the agent is a catch-all fallback.
func (a *Agent) IsWildcard() bool {
	for _, k := range a.Keywords {
		if k == Wildcard {
			return true
		}
	}
	return false
}
