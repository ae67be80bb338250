package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"maestro/internal/agent/models"
	id "maestro/pkg/domain"
	"maestro/pkg/platform/sentinel"
	"maestro/pkg/requestcontext"
)

// Seed installs the default agent roster for a tenant. It is idempotent per
// agent: defaults already present in the store are skipped by name.
func Seed(ctx context.Context, s interface {
	Create(ctx context.Context, agent *models.Agent) error
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Agent, error)
}, tenantID id.TenantID) error {
	existing, err := s.ListByTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("seed agents: %w", err)
	}
	present := make(map[string]bool, len(existing))
	for _, a := range existing {
		present[a.Name] = true
	}

	defaults, err := defaultAgents(ctx, tenantID)
	if err != nil {
		return err
	}
	for _, def := range defaults {
		if present[def.Name] {
			continue
		}
		if err := s.Create(ctx, def); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				continue
			}
			return fmt.Errorf("seed agent %q: %w", def.Name, err)
		}
	}
	return nil
}

type agentDef struct {
	name        string
	description string
	kind        models.Kind
	priority    int
	keywords    []string
	prompt      string
}

func defaultAgents(ctx context.Context, tenantID id.TenantID) ([]*models.Agent, error) {
	defs := []agentDef{
		{"Finance Agent", "Financial queries and reporting", models.KindFinance, 10, []string{
			"vendas", "faturamento", "receita", "despesa", "lucro",
			"balanço", "fluxo de caixa", "relatório financeiro", "finanças",
		}, "Você é um assistente financeiro especializado."},
		{"Shared Ownership Agent", "Timeshare and shared property contracts", models.KindSharedProperty, 9, []string{
			"multipropriedade", "timeshare", "semana", "intercâmbio",
			"cota", "fração", "condomínio", "manutenção",
			"anuidade", "permuta",
		}, "Você é um assistente especializado em multipropriedade e timeshare."},
		{"Hospitality Agent", "Hotel bookings and guest services", models.KindHospitality, 8, []string{
			"reserva", "quarto", "hotel", "check-in", "check-out",
			"hospedagem", "diária", "suite",
		}, "Você é um assistente especializado em hotelaria."},
		{"Support Agent", "Technical support", models.KindSupport, 7, []string{
			"problema", "erro", "não funciona", "ajuda", "suporte",
			"bug", "como faço",
		}, "Você é um agente de suporte técnico especializado."},
		{"General Agent", "Fallback for unmatched messages", models.KindGeneral, 1, []string{
			models.Wildcard,
		}, "Você é um assistente virtual prestativo e cortês."},
	}

	now := requestcontext.Now(ctx)
	agents := make([]*models.Agent, 0, len(defs))
	for _, d := range defs {
		agent, err := models.New(id.AgentID(uuid.New()), tenantID, d.name, d.kind, d.keywords, d.priority, now)
		if err != nil {
			return nil, err
		}
		agent.Description = d.description
		agent.SystemPrompt = d.prompt
		agents = append(agents, agent)
	}
	return agents, nil
}
