package models

import (
	"time"

	"github.com/google/uuid"

	id "maestro/pkg/domain"
)

// DataKind enumerates the categories of sensitive data the detector finds.
type DataKind string

const (
	KindNationalID DataKind = "national_id" // CPF
	KindBusinessID DataKind = "business_id" // CNPJ
	KindName       DataKind = "name"
	KindEmail      DataKind = "email"
	KindPhone      DataKind = "phone"
)

// DefaultTTL is how long a record stays revertible before the purge sweep
// may remove it.
const DefaultTTL = 24 * time.Hour

// Record maps an opaque token back to one encrypted sensitive value.
//
// Invariants:
//   - Token is globally unique; it is the placeholder substituted into text
//   - A record is immutable after creation except for RevertedAt
//   - A record past ExpiresAt is eligible for purge regardless of RevertedAt
//   - One plaintext value within a single pseudonymization call maps to
//     exactly one record (de-duplication happens before persistence)
type Record struct {
	ID                id.RecordID        `json:"id"`
	Token             uuid.UUID          `json:"token"`
	OriginalValueHash string             `json:"original_value_hash"`
	EncryptedValue    string             `json:"encrypted_value"`
	DataKind          DataKind           `json:"data_kind"`
	ConversationID    *id.ConversationID `json:"conversation_id,omitempty"`
	AIRequestID       *id.AIRequestID    `json:"ai_request_id,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	RevertedAt        *time.Time         `json:"reverted_at,omitempty"`
	ExpiresAt         time.Time          `json:"expires_at"`
}

// Expired reports whether the record is past its expiry at the given time.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}

// MarkReverted stamps the record as consumed by a reversal. Only the first
// reversal is recorded; later reversals of the same token are reads only.
func (r *Record) MarkReverted(now time.Time) {
	if r.RevertedAt == nil {
		t := now
		r.RevertedAt = &t
	}
}
