package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"maestro/internal/privacy/models"
	"maestro/pkg/platform/sentinel"
)

// InMemory implements the record store over a mutex-guarded map. Used in
// tests and broker-less development deployments.
type InMemory struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*models.Record
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[uuid.UUID]*models.Record)}
}

func (s *InMemory) Create(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.Token]; exists {
		return sentinel.ErrConflict
	}
	cp := *record
	s.records[record.Token] = &cp
	return nil
}

func (s *InMemory) FindByToken(_ context.Context, token uuid.UUID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *record
	return &cp, nil
}

func (s *InMemory) FindByScope(_ context.Context, scope models.Scope) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Record
	for _, record := range s.records {
		if scope.Matches(record) {
			cp := *record
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemory) Update(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.Token]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *record
	s.records[record.Token] = &cp
	return nil
}

func (s *InMemory) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for token, record := range s.records {
		if record.Expired(now) {
			delete(s.records, token)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many records are held. Test helper.
func (s *InMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
