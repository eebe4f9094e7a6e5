package payment

import (
	"context"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"shopflow/internal/contracts"
	"shopflow/internal/trace"
)

func TestHandleOrderCreated_UnparseableIDs(t *testing.T) {
	p := NewProcessor(nil, nil, trace.NewStore("payment", 10), slog.New(slog.DiscardHandler))

	cases := []struct {
		name string
		evt  contracts.OrderCreatedEvent
	}{
		{"bad customer id", contracts.OrderCreatedEvent{
			OrderID:    "0e4a4747-87c0-4b8a-9a46-8d1cbb4e0d3f",
			CustomerID: "not-a-uuid",
			Total:      decimal.New(10, 0),
		}},
		{"bad order id", contracts.OrderCreatedEvent{
			OrderID:    "not-a-uuid",
			CustomerID: "0e4a4747-87c0-4b8a-9a46-8d1cbb4e0d3f",
			Total:      decimal.New(10, 0),
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := p.HandleOrderCreated(context.Background(), "m-1", tc.evt, "")
			assert.ErrorIs(t, err, contracts.ErrMalformedEvent)
		})
	}
}
