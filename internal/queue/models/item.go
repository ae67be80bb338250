// Package models defines the durable inbound queue: items awaiting pipeline
// processing and the dead letters that exhausted their attempts.
package models

import (
	"encoding/json"
	"time"

	id "maestro/pkg/domain"
	dErrors "maestro/pkg/domain-errors"
)

// DefaultMaxAttempts bounds retries before an item moves to the dead letter
// table.
const DefaultMaxAttempts = 3

// Status tracks an item through the queue.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
)

// Item is one unit of queued work. Payload is an opaque JSON document; the
// Kind field tells consumers how to decode it.
type Item struct {
	ID          id.QueueItemID  `json:"id"`
	TenantID    id.TenantID     `json:"tenant_id"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	Status      Status          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}

func NewItem(itemID id.QueueItemID, tenantID id.TenantID, kind string, payload json.RawMessage, now time.Time) (*Item, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "queue item requires a tenant")
	}
	if kind == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "queue item kind cannot be empty")
	}
	if len(payload) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "queue item payload cannot be empty")
	}
	return &Item{
		ID:          itemID,
		TenantID:    tenantID,
		Kind:        kind,
		Payload:     payload,
		Status:      StatusQueued,
		MaxAttempts: DefaultMaxAttempts,
		CreatedAt:   now,
	}, nil
}

// Claimable reports whether the item may still be handed to a consumer.
func (i *Item) Claimable() bool {
	return i.Status == StatusQueued && i.Attempts < i.MaxAttempts
}

// Claim transitions the item to processing and burns one attempt.
func (i *Item) Claim(now time.Time) {
	i.Status = StatusProcessing
	i.Attempts++
	i.ProcessedAt = &now
}

// Complete marks the item successfully handled.
func (i *Item) Complete(now time.Time) {
	i.Status = StatusProcessed
	i.ProcessedAt = &now
}

// Fail records the error. Returns true when the item is out of attempts and
// must move to the dead letter table; otherwise the item is requeued.
func (i *Item) Fail(reason string) bool {
	i.LastError = reason
	if i.Attempts >= i.MaxAttempts {
		return true
	}
	i.Status = StatusQueued
	return false
}

// DeadLetter is a queue item that exhausted its attempts, kept for manual
// inspection and replay.
type DeadLetter struct {
	ID       id.QueueItemID  `json:"id"`
	ItemID   id.QueueItemID  `json:"item_id"`
	TenantID id.TenantID     `json:"tenant_id"`
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
	Reason   string          `json:"reason"`
	MovedAt  time.Time       `json:"moved_at"`
}
