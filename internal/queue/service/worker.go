package service

import (
	"context"
	"time"

	"maestro/internal/queue/models"
)

// Handler processes one claimed item. A non-nil error counts as a failed
// attempt.
type Handler func(ctx context.Context, item *models.Item) error

// Worker drains the queue on a polling loop. Multiple workers may run
// against the same store; claiming keeps them from colliding.
type Worker struct {
	queue    *Queue
	handler  Handler
	interval time.Duration
}

func NewWorker(queue *Queue, handler Handler, interval time.Duration) *Worker {
	return &Worker{queue: queue, handler: handler, interval: interval}
}

// Run polls until the context is cancelled. Each tick drains the queue
// completely before sleeping again.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				return err
			}
		}
	}
}

// drain processes items until the queue is empty. Handler failures are
// recorded on the item and do not stop the loop; only infrastructure errors
// propagate.
func (w *Worker) drain(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			return err
		}
		if item == nil {
			return nil
		}
		if err := w.handler(ctx, item); err != nil {
			if err := w.queue.MarkFailed(ctx, item.ID, err.Error()); err != nil {
				return err
			}
			continue
		}
		if err := w.queue.MarkProcessed(ctx, item.ID); err != nil {
			return err
		}
	}
}
