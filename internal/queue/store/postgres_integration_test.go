//go:build integration

package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"maestro/internal/queue/models"
	"maestro/internal/queue/store"
	id "maestro/pkg/domain"
	"maestro/pkg/platform/sentinel"
	"maestro/pkg/testutil/containers"
)

type QueuePostgresSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *store.Postgres
	ctx   context.Context
	now   time.Time
}

func TestQueuePostgresSuite(t *testing.T) {
	suite.Run(t, new(QueuePostgresSuite))
}

func (s *QueuePostgresSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.pg.DB)
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
}

func (s *QueuePostgresSuite) SetupTest() {
	_, err := s.pg.DB.ExecContext(s.ctx, `TRUNCATE queue_items, queue_dead_letters`)
	s.Require().NoError(err)
}

func (s *QueuePostgresSuite) newItem(createdAt time.Time) *models.Item {
	item, err := models.NewItem(
		id.QueueItemID(uuid.New()),
		id.TenantID(uuid.New()),
		"inbound_message",
		json.RawMessage(`{"content":"ola"}`),
		createdAt,
	)
	s.Require().NoError(err)
	return item
}

func (s *QueuePostgresSuite) TestClaimNextTakesOldest() {
	second := s.newItem(s.now.Add(time.Second))
	s.Require().NoError(s.store.Create(s.ctx, second))
	first := s.newItem(s.now)
	s.Require().NoError(s.store.Create(s.ctx, first))

	claimed, err := s.store.ClaimNext(s.ctx, s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(first.ID, claimed.ID)
	s.Equal(models.StatusProcessing, claimed.Status)
	s.Equal(1, claimed.Attempts)
	s.Require().NotNil(claimed.ProcessedAt)

	claimed, err = s.store.ClaimNext(s.ctx, s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(second.ID, claimed.ID)
}

func (s *QueuePostgresSuite) TestClaimNextEmptyQueue() {
	_, err := s.store.ClaimNext(s.ctx, s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *QueuePostgresSuite) TestClaimSkipsProcessingAndExhausted() {
	item := s.newItem(s.now)
	s.Require().NoError(s.store.Create(s.ctx, item))

	claimed, err := s.store.ClaimNext(s.ctx, s.now)
	s.Require().NoError(err)

	// Still processing: nothing left to claim.
	_, err = s.store.ClaimNext(s.ctx, s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)

	// Requeue with attempts exhausted: still nothing to claim.
	claimed.Status = models.StatusQueued
	claimed.Attempts = claimed.MaxAttempts
	s.Require().NoError(s.store.Update(s.ctx, claimed))

	_, err = s.store.ClaimNext(s.ctx, s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *QueuePostgresSuite) TestUpdateAndRemove() {
	item := s.newItem(s.now)
	s.Require().NoError(s.store.Create(s.ctx, item))

	item.Status = models.StatusProcessed
	processedAt := s.now.Add(time.Minute)
	item.ProcessedAt = &processedAt
	s.Require().NoError(s.store.Update(s.ctx, item))

	found, err := s.store.FindByID(s.ctx, item.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusProcessed, found.Status)
	s.Require().NotNil(found.ProcessedAt)

	s.Require().NoError(s.store.Remove(s.ctx, item.ID))
	_, err = s.store.FindByID(s.ctx, item.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *QueuePostgresSuite) TestDeadLetterRoundTrip() {
	item := s.newItem(s.now)
	s.Require().NoError(s.store.Create(s.ctx, item))

	dl := &models.DeadLetter{
		ID:       id.QueueItemID(uuid.New()),
		ItemID:   item.ID,
		TenantID: item.TenantID,
		Kind:     item.Kind,
		Payload:  item.Payload,
		Attempts: models.DefaultMaxAttempts,
		Reason:   "handler kept failing",
		MovedAt:  s.now.Add(time.Minute),
	}
	s.Require().NoError(s.store.CreateDeadLetter(s.ctx, dl))
	s.Require().NoError(s.store.Remove(s.ctx, item.ID))

	letters, err := s.store.DeadLetters(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(letters, 1)
	s.Equal(item.ID, letters[0].ItemID)
	s.Equal("handler kept failing", letters[0].Reason)
	s.JSONEq(`{"content":"ola"}`, string(letters[0].Payload))
}
