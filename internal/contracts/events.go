package contracts

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrMalformedEvent marks event content that can never become processable,
// such as an unparseable id. Consumers drop such deliveries instead of
// requeueing them: redelivery cannot fix the payload, it only starves the
// queue.
var ErrMalformedEvent = errors.New("malformed event")

// TraceHeader carries the caller-supplied correlation id from the original
// HTTP request through outbox headers and broker headers to every consumer.
const TraceHeader = "X-Trace-Id"

const (
	EventOrderCreated     = "orders.created"
	EventPaymentCompleted = "payments.completed"
)

type OrderCreatedEvent struct {
	OrderID    string          `json:"order_id"`
	CustomerID string          `json:"customer_id"`
	Total      decimal.Decimal `json:"total"`
}

type PaymentCompletedEvent struct {
	OrderID string `json:"order_id"`
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}
