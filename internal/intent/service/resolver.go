// Package service scores inbound messages against a tenant's agent roster
// and picks the agents most likely to handle them.
package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"maestro/internal/agent/models"
	intentmetrics "maestro/internal/intent/metrics"
	id "maestro/pkg/domain"
	dErrors "maestro/pkg/domain-errors"
)

// MinConfidence is the score floor below which a candidate is discarded.
const MinConfidence = 0.3

// AgentDirectory supplies the enabled agents of a tenant. Implementations
// live in internal/agent/store; the cached decorator satisfies it too.
type AgentDirectory interface {
	ListEnabled(ctx context.Context, tenantID id.TenantID) ([]*models.Agent, error)
}

// Candidate pairs an agent with the confidence it scored for a message.
type Candidate struct {
	Agent      *models.Agent
	Confidence float64
}

// Resolver routes messages to agents by keyword overlap. Scoring is purely
// lexical: tokens of the lowercased message are matched against each agent's
// keywords by substring containment in either direction.
type Resolver struct {
	directory AgentDirectory
	logger    *slog.Logger
	metrics   *intentmetrics.Metrics
}

// Option configures the Resolver.
type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

func WithMetrics(m *intentmetrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

func New(directory AgentDirectory, opts ...Option) (*Resolver, error) {
	if directory == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "intent resolver requires an agent directory")
	}
	r := &Resolver{
		directory: directory,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ResolveBest returns the single highest-scoring agent for the message, or
// (nil, 0) when no agent clears MinConfidence. Absence of a match is not an
// error; callers decide how to handle unrouted messages.
func (r *Resolver) ResolveBest(ctx context.Context, tenantID id.TenantID, message string) (*models.Agent, float64, error) {
	candidates, err := r.ResolveTop(ctx, tenantID, message, 1)
	if err != nil {
		return nil, 0, err
	}
	if len(candidates) == 0 {
		return nil, 0, nil
	}
	return candidates[0].Agent, candidates[0].Confidence, nil
}

// ResolveTop scores every enabled agent of the tenant and returns up to top
// candidates, best first, dropping any below MinConfidence. Ties keep the
// directory's enumeration order, so results are deterministic for a given
// roster.
func (r *Resolver) ResolveTop(ctx context.Context, tenantID id.TenantID, message string, top int) ([]Candidate, error) {
	start := time.Now()
	if r.metrics != nil {
		defer r.metrics.ObserveResolve(start)
	}

	agents, err := r.directory.ListEnabled(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "listing enabled agents")
	}
	if len(agents) == 0 {
		r.logger.WarnContext(ctx, "no enabled agents for tenant", "tenant_id", tenantID.String())
		return nil, nil
	}

	tokens := Tokenize(message)

	candidates := make([]Candidate, 0, len(agents))
	for _, agent := range agents {
		score := Score(tokens, agent.Keywords, agent.Priority)
		candidates = append(candidates, Candidate{Agent: agent, Confidence: score})
		r.logger.DebugContext(ctx, "agent scored",
			"agent", agent.Name,
			"score", score,
		)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	if top > 0 && len(candidates) > top {
		candidates = candidates[:top]
	}
	results := candidates[:0:len(candidates)]
	for _, c := range candidates {
		if c.Confidence >= MinConfidence {
			results = append(results, c)
		}
	}

	if len(results) == 0 {
		r.logger.WarnContext(ctx, "no agent cleared confidence threshold",
			"tenant_id", tenantID.String(),
			"tokens", len(tokens),
		)
		if r.metrics != nil {
			r.metrics.Unresolved.Inc()
		}
		return nil, nil
	}

	r.logger.InfoContext(ctx, "intent resolved",
		"agent", results[0].Agent.Name,
		"confidence", results[0].Confidence,
	)
	if r.metrics != nil {
		r.metrics.Resolutions.WithLabelValues(string(results[0].Agent.Kind)).Inc()
		r.metrics.Confidence.Observe(results[0].Confidence)
	}
	return results, nil
}

// tokenSeparators are the characters a message is split on before scoring.
const tokenSeparators = " ,.!?;:\n\r"

// Tokenize lowercases the message, splits it on separators, and drops tokens
// of one or two characters. Short tokens are mostly articles and pronouns
// that would match almost any keyword by containment. Length is counted in
// runes so accented words like "às" or "pé" are dropped too.
func Tokenize(message string) []string {
	fields := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return strings.ContainsRune(tokenSeparators, r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) > 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Score computes the confidence of one agent for a tokenized message.
//
// Wildcard agents score a fixed fallback baseline of 0.4 plus 0.01 per
// priority point, independent of the message. Everyone else scores the
// fraction of message tokens that overlap a keyword (substring containment
// either way), weighted 0.9, plus 0.02 per priority point, capped at 1.0.
// An agent with no keywords, or with no token overlap, scores zero.
func Score(tokens []string, keywords []string, priority int) float64 {
	if len(keywords) == 0 {
		return 0
	}

	for _, k := range keywords {
		if k == models.Wildcard {
			return 0.4 + float64(priority)*0.01
		}
	}

	matches := 0
	for _, t := range tokens {
		for _, k := range keywords {
			lk := strings.ToLower(k)
			if strings.Contains(lk, t) || strings.Contains(t, lk) {
				matches++
				break
			}
		}
	}
	if matches == 0 {
		return 0
	}

	score := float64(matches)/float64(len(tokens))*0.9 + float64(priority)*0.02
	if score > 1.0 {
		return 1.0
	}
	return score
}
