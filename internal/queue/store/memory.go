// Package store persists queue items and dead letters.
package store

import (
	"context"
	"sync"
	"time"

	"maestro/internal/queue/models"
	id "maestro/pkg/domain"
	"maestro/pkg/platform/sentinel"
)

// InMemory holds queue items and dead letters in mutex-guarded maps. Claiming
// is serialized by the write lock, mirroring the row lock the postgres store
// takes.
type InMemory struct {
	mu          sync.Mutex
	items       map[id.QueueItemID]*models.Item
	deadLetters []*models.DeadLetter
}

func NewInMemory() *InMemory {
	return &InMemory{items: make(map[id.QueueItemID]*models.Item)}
}

func (s *InMemory) Create(_ context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[item.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := cloneItem(item)
	s.items[item.ID] = cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, itemID id.QueueItemID) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneItem(item), nil
}

// ClaimNext atomically picks the oldest claimable item, marks it processing,
// and burns an attempt. Returns ErrNotFound when the queue is drained.
func (s *InMemory) ClaimNext(_ context.Context, now time.Time) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var oldest *models.Item
	for _, item := range s.items {
		if !item.Claimable() {
			continue
		}
		if oldest == nil ||
			item.CreatedAt.Before(oldest.CreatedAt) ||
			(item.CreatedAt.Equal(oldest.CreatedAt) && item.ID.String() < oldest.ID.String()) {
			oldest = item
		}
	}
	if oldest == nil {
		return nil, sentinel.ErrNotFound
	}
	oldest.Claim(now)
	return cloneItem(oldest), nil
}

func (s *InMemory) Update(_ context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.items[item.ID] = cloneItem(item)
	return nil
}

func (s *InMemory) Remove(_ context.Context, itemID id.QueueItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[itemID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.items, itemID)
	return nil
}

func (s *InMemory) CreateDeadLetter(_ context.Context, dl *models.DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *dl
	cp.Payload = append([]byte(nil), dl.Payload...)
	s.deadLetters = append(s.deadLetters, &cp)
	return nil
}

// DeadLetters returns a snapshot of the dead letter table.
func (s *InMemory) DeadLetters(_ context.Context) ([]*models.DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.DeadLetter, 0, len(s.deadLetters))
	for _, dl := range s.deadLetters {
		cp := *dl
		cp.Payload = append([]byte(nil), dl.Payload...)
		out = append(out, &cp)
	}
	return out, nil
}

func cloneItem(i *models.Item) *models.Item {
	cp := *i
	cp.Payload = append([]byte(nil), i.Payload...)
	if i.ProcessedAt != nil {
		t := *i.ProcessedAt
		cp.ProcessedAt = &t
	}
	return &cp
}
