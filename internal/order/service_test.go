package order

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"shopflow/internal/contracts"
	"shopflow/internal/trace"
)

func TestApplyPaymentResult_UnparseableOrderID(t *testing.T) {
	svc := NewService(nil, nil, trace.NewStore("order", 10), nil, slog.New(slog.DiscardHandler))

	evt := contracts.PaymentCompletedEvent{OrderID: "not-a-uuid", Success: true}
	err := svc.ApplyPaymentResult(context.Background(), "m-1", evt, "")

	// Classified as malformed so the consumer drops the delivery instead of
	// requeueing it forever.
	assert.ErrorIs(t, err, contracts.ErrMalformedEvent)
}
