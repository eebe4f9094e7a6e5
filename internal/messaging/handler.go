package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"

	"shopflow/internal/contracts"
)

// HandleJSON wraps a typed event handler with the delivery preconditions
// every consumer shares: the event type tag must match, the delivery must
// carry a message id (the dedup key), and the body must decode. Violations
// are rejected without requeue, as is any apply error wrapping
// contracts.ErrMalformedEvent; other apply errors requeue for another
// attempt. Apply receives the message id and the forwarded trace id.
func HandleJSON[T any](eventType string, logger *slog.Logger, apply func(ctx context.Context, messageID string, evt T, traceID string) error) func(context.Context, amqp091.Delivery) {
	return func(ctx context.Context, msg amqp091.Delivery) {
		if msg.Type != eventType {
			logger.Error("unexpected event type", "type", msg.Type, "message_id", msg.MessageId)
			_ = msg.Nack(false, false)
			return
		}
		if msg.MessageId == "" {
			logger.Error("delivery without message id, cannot dedup", "type", msg.Type)
			_ = msg.Nack(false, false)
			return
		}

		var evt T
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			logger.Error("invalid event payload", "type", msg.Type, "message_id", msg.MessageId, "err", err)
			_ = msg.Nack(false, false)
			return
		}

		traceID := TraceID(msg, contracts.TraceHeader)
		if err := apply(ctx, msg.MessageId, evt, traceID); err != nil {
			if errors.Is(err, contracts.ErrMalformedEvent) {
				logger.Error("unprocessable event dropped", "type", msg.Type, "message_id", msg.MessageId, "err", err)
				_ = msg.Nack(false, false)
				return
			}
			logger.Error("handle event failed", "type", msg.Type, "message_id", msg.MessageId, "err", err)
			_ = msg.Nack(false, true)
			return
		}

		_ = msg.Ack(false)
	}
}
