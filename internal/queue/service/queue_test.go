package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"maestro/internal/queue/models"
	"maestro/internal/queue/service"
	"maestro/internal/queue/store"
	id "maestro/pkg/domain"
	dErrors "maestro/pkg/domain-errors"
	"maestro/pkg/requestcontext"
)

type QueueSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	store    *store.InMemory
	queue    *service.Queue
	tenantID id.TenantID
}

func TestQueueSuite(t *testing.T) {
	suite.Run(t, new(QueueSuite))
}

func (s *QueueSuite) SetupTest() {
	s.now = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.store = store.NewInMemory()
	s.tenantID = id.TenantID(uuid.New())

	queue, err := service.New(s.store)
	require.NoError(s.T(), err)
	s.queue = queue
}

type webhookPayload struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

func (s *QueueSuite) TestEnqueueDequeueRoundTrip() {
	enqueued, err := s.queue.Enqueue(s.ctx, s.tenantID, "inbound.message", webhookPayload{Sender: "+55119", Content: "oi"})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.StatusQueued, enqueued.Status)
	assert.Equal(s.T(), s.now, enqueued.CreatedAt)

	claimed, err := s.queue.Dequeue(s.ctx)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), claimed)
	assert.Equal(s.T(), enqueued.ID, claimed.ID)
	assert.Equal(s.T(), models.StatusProcessing, claimed.Status)
	assert.Equal(s.T(), 1, claimed.Attempts)

	var payload webhookPayload
	require.NoError(s.T(), json.Unmarshal(claimed.Payload, &payload))
	assert.Equal(s.T(), "oi", payload.Content)

	s.Run("empty queue yields nil", func() {
		next, err := s.queue.Dequeue(s.ctx)
		require.NoError(s.T(), err)
		assert.Nil(s.T(), next)
	})
}

func (s *QueueSuite) TestDequeueIsFIFO() {
	first, err := s.queue.Enqueue(s.ctx, s.tenantID, "inbound.message", webhookPayload{Content: "primeira"})
	require.NoError(s.T(), err)

	later := requestcontext.WithTime(context.Background(), s.now.Add(time.Second))
	second, err := s.queue.Enqueue(later, s.tenantID, "inbound.message", webhookPayload{Content: "segunda"})
	require.NoError(s.T(), err)

	claimed, err := s.queue.Dequeue(s.ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), first.ID, claimed.ID)

	claimed, err = s.queue.Dequeue(s.ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), second.ID, claimed.ID)
}

func (s *QueueSuite) TestMarkProcessed() {
	item, err := s.queue.Enqueue(s.ctx, s.tenantID, "inbound.message", webhookPayload{Content: "oi"})
	require.NoError(s.T(), err)
	_, err = s.queue.Dequeue(s.ctx)
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.queue.MarkProcessed(s.ctx, item.ID))

	stored, err := s.store.FindByID(s.ctx, item.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.StatusProcessed, stored.Status)
	require.NotNil(s.T(), stored.ProcessedAt)
	assert.Equal(s.T(), s.now, *stored.ProcessedAt)

	s.Run("processed items are not reclaimed", func() {
		next, err := s.queue.Dequeue(s.ctx)
		require.NoError(s.T(), err)
		assert.Nil(s.T(), next)
	})

	s.Run("unknown item", func() {
		err := s.queue.MarkProcessed(s.ctx, id.QueueItemID(uuid.New()))
		assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *QueueSuite) TestFailedItemIsRequeuedUntilExhausted() {
	item, err := s.queue.Enqueue(s.ctx, s.tenantID, "inbound.message", webhookPayload{Content: "oi"})
	require.NoError(s.T(), err)

	// Attempts 1 and 2 fail and requeue.
	for attempt := 1; attempt < models.DefaultMaxAttempts; attempt++ {
		claimed, err := s.queue.Dequeue(s.ctx)
		require.NoError(s.T(), err)
		require.NotNil(s.T(), claimed, "attempt %d should reclaim the item", attempt)
		require.NoError(s.T(), s.queue.MarkFailed(s.ctx, item.ID, "provider unavailable"))

		stored, err := s.store.FindByID(s.ctx, item.ID)
		require.NoError(s.T(), err)
		assert.Equal(s.T(), models.StatusQueued, stored.Status)
		assert.Equal(s.T(), attempt, stored.Attempts)
		assert.Equal(s.T(), "provider unavailable", stored.LastError)
	}

	// Final attempt exhausts the item.
	claimed, err := s.queue.Dequeue(s.ctx)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), claimed)
	require.NoError(s.T(), s.queue.MarkFailed(s.ctx, item.ID, "provider unavailable"))

	s.Run("item left the queue", func() {
		_, err := s.store.FindByID(s.ctx, item.ID)
		require.Error(s.T(), err)

		next, err := s.queue.Dequeue(s.ctx)
		require.NoError(s.T(), err)
		assert.Nil(s.T(), next)
	})

	s.Run("dead letter preserves the payload", func() {
		letters, err := s.store.DeadLetters(s.ctx)
		require.NoError(s.T(), err)
		require.Len(s.T(), letters, 1)
		assert.Equal(s.T(), item.ID, letters[0].ItemID)
		assert.Equal(s.T(), models.DefaultMaxAttempts, letters[0].Attempts)
		assert.Equal(s.T(), "provider unavailable", letters[0].Reason)

		var payload webhookPayload
		require.NoError(s.T(), json.Unmarshal(letters[0].Payload, &payload))
		assert.Equal(s.T(), "oi", payload.Content)
	})
}

func (s *QueueSuite) TestWorkerDrainsQueue() {
	for _, content := range []string{"um", "dois", "tres"} {
		_, err := s.queue.Enqueue(s.ctx, s.tenantID, "inbound.message", webhookPayload{Content: content})
		require.NoError(s.T(), err)
	}

	var handled []string
	worker := service.NewWorker(s.queue, func(_ context.Context, item *models.Item) error {
		var payload webhookPayload
		if err := json.Unmarshal(item.Payload, &payload); err != nil {
			return err
		}
		handled = append(handled, payload.Content)
		return nil
	}, time.Millisecond)

	ctx, cancel := context.WithTimeout(s.ctx, 200*time.Millisecond)
	defer cancel()
	err := worker.Run(ctx)
	require.ErrorIs(s.T(), err, context.DeadlineExceeded)

	assert.Len(s.T(), handled, 3)

	next, err := s.queue.Dequeue(s.ctx)
	require.NoError(s.T(), err)
	assert.Nil(s.T(), next)
}

func (s *QueueSuite) TestWorkerRetriesFailingHandler() {
	item, err := s.queue.Enqueue(s.ctx, s.tenantID, "inbound.message", webhookPayload{Content: "oi"})
	require.NoError(s.T(), err)

	calls := 0
	worker := service.NewWorker(s.queue, func(context.Context, *models.Item) error {
		calls++
		return errors.New("boom")
	}, time.Millisecond)

	ctx, cancel := context.WithTimeout(s.ctx, 200*time.Millisecond)
	defer cancel()
	require.ErrorIs(s.T(), worker.Run(ctx), context.DeadlineExceeded)

	assert.Equal(s.T(), models.DefaultMaxAttempts, calls)

	letters, err := s.store.DeadLetters(s.ctx)
	require.NoError(s.T(), err)
	require.Len(s.T(), letters, 1)
	assert.Equal(s.T(), item.ID, letters[0].ItemID)
}
