// Package audit defines the compliance audit event model and publishers.
//
// Pseudonymization is a data-protection measure, so its lifecycle (values
// pseudonymized, values reverted, expired records purged) must leave an audit
// trail. Events are published to Kafka when brokers are configured; the
// in-memory publisher backs tests and broker-less deployments.
package audit

import (
	"context"
	"time"

	id "maestro/pkg/domain"
)

// Category partitions events by operational intent.
type Category string

const (
	// CategoryCompliance marks events required for regulatory audit trails.
	CategoryCompliance Category = "compliance"
	// CategoryOps marks operational events useful for debugging and metrics.
	CategoryOps Category = "ops"
)

// Action names. Kept stable: downstream consumers key on these strings.
const (
	ActionTextPseudonymized = "text.pseudonymized"
	ActionTextReverted      = "text.reverted"
	ActionRecordsPurged     = "records.purged"
	ActionMessageProcessed  = "message.processed"
	ActionIntentResolved    = "intent.resolved"
)

// Event is one audit trail entry.
type Event struct {
	Action         string            `json:"action"`
	Category       Category          `json:"category"`
	TenantID       id.TenantID       `json:"tenant_id,omitempty"`
	ConversationID id.ConversationID `json:"conversation_id,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	Detail         map[string]string `json:"detail,omitempty"`
}

// Publisher emits audit events. Implementations decide delivery semantics;
// callers must tolerate Emit being best-effort for ops-category events.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// categoryByAction is the source of truth for event categorization.
var categoryByAction = map[string]Category{
	ActionTextPseudonymized: CategoryCompliance,
	ActionTextReverted:      CategoryCompliance,
	ActionRecordsPurged:     CategoryCompliance,
	ActionMessageProcessed:  CategoryOps,
	ActionIntentResolved:    CategoryOps,
}

// CategoryOf returns the category for an action, defaulting to ops.
func CategoryOf(action string) Category {
	if c, ok := categoryByAction[action]; ok {
		return c
	}
	return CategoryOps
}
