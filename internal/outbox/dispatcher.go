package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Store is the slice of the outbox a dispatcher needs.
type Store interface {
	ClaimBatch(ctx context.Context, limit int) ([]Message, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailure(ctx context.Context, id uuid.UUID, attempts int) error
}

// Publisher ships one outbox message to the broker.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

const publishTimeout = 5 * time.Second

// Dispatcher bridges committed-but-unpublished outbox rows to the broker.
// A row leaves pending only after a confirmed publish, so nothing is ever
// silently dropped; a crash mid-batch at worst republishes (consumers
// dedup by message id).
type Dispatcher struct {
	store     Store
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewDispatcher(store Store, publisher Publisher, interval time.Duration, batch int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: batch,
		logger:    logger,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	go d.loop(ctx)
}

func (d *Dispatcher) loop(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if err := d.dispatch(ctx); err != nil {
			d.logger.Error("outbox dispatch failed", "err", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// dispatch runs one tick: claim a bounded batch and publish each row. It is
// safe to run concurrently with other dispatchers; coordination happens in
// the store via locks and the claim lease.
func (d *Dispatcher) dispatch(ctx context.Context) error {
	msgs, err := d.store.ClaimBatch(ctx, d.batchSize)
	if err != nil {
		return err
	}

	for _, msg := range msgs {
		if err := d.publishOne(ctx, msg); err != nil {
			d.logger.Warn("publish event failed",
				"message_id", msg.ID, "event_type", msg.EventType, "attempts", msg.Attempts+1, "err", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

func (d *Dispatcher) publishOne(ctx context.Context, msg Message) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := d.publisher.Publish(pubCtx, msg); err != nil {
		attempts := msg.Attempts + 1
		if status, _ := nextAttemptState(attempts); status == StatusDead {
			d.logger.Error("outbox message dead-lettered",
				"message_id", msg.ID, "event_type", msg.EventType, "attempts", attempts)
		}
		if markErr := d.store.MarkFailure(ctx, msg.ID, attempts); markErr != nil {
			return markErr
		}
		return err
	}

	return d.store.MarkSent(ctx, msg.ID)
}
