// Package service orchestrates detection, substitution, record lifecycle,
// and reversal of sensitive values in conversational text.
package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"maestro/internal/privacy/detect"
	privacymetrics "maestro/internal/privacy/metrics"
	"maestro/internal/privacy/models"
	id "maestro/pkg/domain"
	dErrors "maestro/pkg/domain-errors"
	"maestro/pkg/platform/audit"
	"maestro/pkg/platform/sentinel"
	"maestro/pkg/requestcontext"
)

// RecordStore is the persistence collaborator for pseudonymization records.
// Implementations live in internal/privacy/store.
type RecordStore interface {
	Create(ctx context.Context, record *models.Record) error
	FindByToken(ctx context.Context, token uuid.UUID) (*models.Record, error)
	FindByScope(ctx context.Context, scope models.Scope) ([]*models.Record, error)
	Update(ctx context.Context, record *models.Record) error
	// DeleteExpired removes every record whose expiry precedes now and
	// returns how many were removed. Deleting already-gone rows is success.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Crypto is the primitive consumed for record protection.
type Crypto interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
	Hash(text string) string
}

// Detector finds candidate sensitive spans in raw text.
type Detector interface {
	Detect(text string) []detect.Match
}

// tokenPattern matches "{<uuid>}" placeholders substituted into text.
var tokenPattern = regexp.MustCompile(`\{([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})\}`)

// Pseudonymizer replaces detected sensitive values with opaque tokens backed
// by encrypted, time-limited records, and later reverses the substitution.
// Stateless per call; safe for concurrent use.
type Pseudonymizer struct {
	records  RecordStore
	crypto   Crypto
	detector Detector
	ttl      time.Duration
	logger   *slog.Logger
	metrics  *privacymetrics.Metrics
	auditor  audit.Publisher
}

// Option configures the Pseudonymizer.
type Option func(*Pseudonymizer)

// WithTTL overrides the default 24h record expiry.
func WithTTL(ttl time.Duration) Option {
	return func(p *Pseudonymizer) { p.ttl = ttl }
}

// WithLogger sets a logger for debug and warning output.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pseudonymizer) { p.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *privacymetrics.Metrics) Option {
	return func(p *Pseudonymizer) { p.metrics = m }
}

// WithAuditPublisher sets the compliance audit publisher.
func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(p *Pseudonymizer) { p.auditor = publisher }
}

// New builds a Pseudonymizer. The store, crypto primitive, and detector are
// required; everything else defaults.
func New(records RecordStore, crypto Crypto, detector Detector, opts ...Option) (*Pseudonymizer, error) {
	if records == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "record store is required")
	}
	if crypto == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "crypto service is required")
	}
	if detector == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "detector is required")
	}
	p := &Pseudonymizer{
		records:  records,
		crypto:   crypto,
		detector: detector,
		ttl:      models.DefaultTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// pendingRecord pairs a detected value with its not-yet-substituted token.
type pendingRecord struct {
	value  string
	record *models.Record
}

// Pseudonymize detects sensitive values in text and replaces every occurrence
// of each distinct value with an opaque "{token}" placeholder backed by a
// persisted record scoped to the given conversation and AI request.
//
// The call is two-phase: all records are persisted before any substitution
// happens. A storage failure therefore aborts with the original text entirely
// unsubstituted; records persisted before the failure carry no tokens in any
// output and expire with the regular sweep.
func (p *Pseudonymizer) Pseudonymize(ctx context.Context, text string, scope models.Scope) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	start := time.Now()
	now := requestcontext.Now(ctx)

	matches := p.detector.Detect(text)
	if len(matches) == 0 {
		return text, nil
	}

	// Distinct over (value, kind): one physical value maps to one token even
	// when it appears several times or is found by several recognizers.
	type matchKey struct {
		value string
		kind  models.DataKind
	}
	seen := make(map[matchKey]struct{}, len(matches))
	var pending []pendingRecord

	for _, m := range matches {
		key := matchKey{value: m.Value, kind: m.Kind}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		encrypted, err := p.crypto.Encrypt(m.Value)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "encrypt sensitive value")
		}

		pending = append(pending, pendingRecord{
			value: m.Value,
			record: &models.Record{
				ID:                id.RecordID(uuid.New()),
				Token:             uuid.New(),
				OriginalValueHash: p.crypto.Hash(m.Value),
				EncryptedValue:    encrypted,
				DataKind:          m.Kind,
				ConversationID:    scope.ConversationID,
				AIRequestID:       scope.AIRequestID,
				CreatedAt:         now,
				ExpiresAt:         now.Add(p.ttl),
			},
		})
	}

	// Phase one: persist every record before touching the text.
	for _, pr := range pending {
		if err := p.records.Create(ctx, pr.record); err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "persist pseudonymization record")
		}
	}

	// Phase two: exhaustive substitution of every occurrence.
	result := text
	kindCounts := make(map[string]int)
	for _, pr := range pending {
		result = strings.ReplaceAll(result, pr.value, "{"+pr.record.Token.String()+"}")
		kindCounts[string(pr.record.DataKind)]++
		if p.metrics != nil {
			p.metrics.IncrementRecordsCreated(string(pr.record.DataKind))
		}
	}

	if p.metrics != nil {
		p.metrics.ObservePseudonymize(start)
	}
	p.emitAudit(ctx, audit.ActionTextPseudonymized, scope, kindCounts)
	p.logger.DebugContext(ctx, "text pseudonymized",
		"records", len(pending),
		"request_id", requestcontext.RequestID(ctx),
	)

	return result, nil
}

// Revert replaces every resolvable "{token}" placeholder in text with the
// decrypted original value and stamps the backing record as reverted. Tokens
// without a backing record are left untouched: the record may have expired
// or belong to a purged batch, and partial reversal beats hard failure.
//
// Lookup is by token only. Scope is accepted for call-site symmetry with
// Pseudonymize but never filters the lookup, since tokens are globally unique.
func (p *Pseudonymizer) Revert(ctx context.Context, text string, scope models.Scope) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	submatches := tokenPattern.FindAllStringSubmatch(text, -1)
	if len(submatches) == 0 {
		return text, nil
	}

	now := requestcontext.Now(ctx)
	result := text
	resolved := 0
	seen := make(map[uuid.UUID]struct{}, len(submatches))

	for _, sm := range submatches {
		token, err := uuid.Parse(sm[1])
		if err != nil {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}

		record, err := p.records.FindByToken(ctx, token)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				if p.metrics != nil {
					p.metrics.RevertMisses.Inc()
				}
				p.logger.WarnContext(ctx, "token has no backing record", "token", token.String())
				continue
			}
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "look up pseudonymization record")
		}

		plaintext, err := p.crypto.Decrypt(record.EncryptedValue)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "decrypt pseudonymization record")
		}

		result = strings.ReplaceAll(result, "{"+token.String()+"}", plaintext)
		resolved++

		record.MarkReverted(now)
		if err := p.records.Update(ctx, record); err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "mark record reverted")
		}
		if p.metrics != nil {
			p.metrics.RevertHits.Inc()
		}
	}

	if resolved > 0 {
		p.emitAudit(ctx, audit.ActionTextReverted, scope, map[string]int{"resolved": resolved})
	}
	return result, nil
}

// GetPseudonymizationMap returns token -> original value for every record in
// scope, decrypting each stored value. Intended for audit and debugging.
func (p *Pseudonymizer) GetPseudonymizationMap(ctx context.Context, scope models.Scope) (map[string]string, error) {
	records, err := p.records.FindByScope(ctx, scope)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list pseudonymization records")
	}

	mapping := make(map[string]string, len(records))
	for _, record := range records {
		plaintext, err := p.crypto.Decrypt(record.EncryptedValue)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decrypt pseudonymization record")
		}
		mapping[record.Token.String()] = plaintext
	}
	return mapping, nil
}

// PurgeExpired deletes every record past its expiry, regardless of reverted
// state. Idempotent and safe to run concurrently with other operations.
func (p *Pseudonymizer) PurgeExpired(ctx context.Context) error {
	now := requestcontext.Now(ctx)
	removed, err := p.records.DeleteExpired(ctx, now)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "purge expired records")
	}
	if removed > 0 {
		if p.metrics != nil {
			p.metrics.RecordsPurged.Add(float64(removed))
		}
		p.emitAudit(ctx, audit.ActionRecordsPurged, models.Scope{}, map[string]int{"removed": removed})
		p.logger.InfoContext(ctx, "expired pseudonymization records purged", "removed", removed)
	}
	return nil
}

func (p *Pseudonymizer) emitAudit(ctx context.Context, action string, scope models.Scope, counts map[string]int) {
	if p.auditor == nil {
		return
	}
	event := audit.Event{
		Action:    action,
		Category:  audit.CategoryCompliance,
		Timestamp: requestcontext.Now(ctx),
		Detail:    make(map[string]string, len(counts)),
	}
	if scope.ConversationID != nil {
		event.ConversationID = *scope.ConversationID
	}
	for k, v := range counts {
		event.Detail[k] = strconv.Itoa(v)
	}
	if err := p.auditor.Emit(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "audit emit failed", "action", action, "error", err.Error())
	}
}
