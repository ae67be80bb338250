// Package service implements the durable inbound queue: enqueue, claim,
// acknowledge, and dead-letter handling on top of a pluggable store.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	queuemetrics "maestro/internal/queue/metrics"
	"maestro/internal/queue/models"
	id "maestro/pkg/domain"
	dErrors "maestro/pkg/domain-errors"
	"maestro/pkg/platform/sentinel"
	"maestro/pkg/requestcontext"
)

// Store is the persistence collaborator for queue items.
type Store interface {
	Create(ctx context.Context, item *models.Item) error
	FindByID(ctx context.Context, itemID id.QueueItemID) (*models.Item, error)
	ClaimNext(ctx context.Context, now time.Time) (*models.Item, error)
	Update(ctx context.Context, item *models.Item) error
	Remove(ctx context.Context, itemID id.QueueItemID) error
	CreateDeadLetter(ctx context.Context, dl *models.DeadLetter) error
}

// Queue coordinates producers and consumers over the store. Safe for
// concurrent use; claiming is atomic at the store level.
type Queue struct {
	store   Store
	logger  *slog.Logger
	metrics *queuemetrics.Metrics
}

// Option configures the Queue.
type Option func(*Queue)

func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) { q.logger = logger }
}

func WithMetrics(m *queuemetrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

func New(store Store, opts ...Option) (*Queue, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "queue requires a store")
	}
	q := &Queue{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Enqueue serializes the payload and appends it to the queue.
func (q *Queue) Enqueue(ctx context.Context, tenantID id.TenantID, kind string, payload any) (*models.Item, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "serializing queue payload")
	}
	item, err := models.NewItem(id.QueueItemID(uuid.New()), tenantID, kind, raw, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := q.store.Create(ctx, item); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "enqueueing item")
	}
	q.logger.InfoContext(ctx, "item enqueued",
		"kind", kind,
		"tenant_id", tenantID.String(),
		"item_id", item.ID.String(),
	)
	if q.metrics != nil {
		q.metrics.Enqueued.WithLabelValues(kind).Inc()
	}
	return item, nil
}

// Dequeue claims the oldest pending item for processing. Returns (nil, nil)
// when the queue is empty; an empty queue is not an error.
func (q *Queue) Dequeue(ctx context.Context) (*models.Item, error) {
	item, err := q.store.ClaimNext(ctx, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "claiming queue item")
	}
	return item, nil
}

// MarkProcessed acknowledges successful handling of a claimed item.
func (q *Queue) MarkProcessed(ctx context.Context, itemID id.QueueItemID) error {
	item, err := q.store.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "queue item not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "loading queue item")
	}
	item.Complete(requestcontext.Now(ctx))
	if err := q.store.Update(ctx, item); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "marking item processed")
	}
	q.logger.InfoContext(ctx, "item processed", "item_id", itemID.String())
	if q.metrics != nil {
		q.metrics.Processed.Inc()
	}
	return nil
}

// MarkFailed records a processing failure. Items with attempts left are
// requeued; exhausted items move to the dead letter table and leave the
// queue.
func (q *Queue) MarkFailed(ctx context.Context, itemID id.QueueItemID, reason string) error {
	item, err := q.store.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "queue item not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "loading queue item")
	}

	if exhausted := item.Fail(reason); exhausted {
		return q.moveToDeadLetter(ctx, item)
	}

	if err := q.store.Update(ctx, item); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "requeueing item")
	}
	q.logger.WarnContext(ctx, "item failed and was requeued",
		"item_id", itemID.String(),
		"attempt", item.Attempts,
		"max_attempts", item.MaxAttempts,
		"reason", reason,
	)
	if q.metrics != nil {
		q.metrics.Requeued.Inc()
	}
	return nil
}

func (q *Queue) moveToDeadLetter(ctx context.Context, item *models.Item) error {
	dl := &models.DeadLetter{
		ID:       id.QueueItemID(uuid.New()),
		ItemID:   item.ID,
		TenantID: item.TenantID,
		Kind:     item.Kind,
		Payload:  item.Payload,
		Attempts: item.Attempts,
		Reason:   item.LastError,
		MovedAt:  requestcontext.Now(ctx),
	}
	if err := q.store.CreateDeadLetter(ctx, dl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "writing dead letter")
	}
	if err := q.store.Remove(ctx, item.ID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "removing exhausted item")
	}
	q.logger.ErrorContext(ctx, "item moved to dead letter table",
		"item_id", item.ID.String(),
		"kind", item.Kind,
		"reason", item.LastError,
	)
	if q.metrics != nil {
		q.metrics.DeadLetters.Inc()
	}
	return nil
}
