package contracts

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderCreatedEvent_ToleratesUnknownFields(t *testing.T) {
	body := []byte(`{
		"order_id": "o-1",
		"customer_id": "c-1",
		"total": "2200.00",
		"schema_version": 3,
		"emitted_by": "some-newer-producer"
	}`)

	var evt OrderCreatedEvent
	require.NoError(t, json.Unmarshal(body, &evt))
	assert.Equal(t, "o-1", evt.OrderID)
	assert.Equal(t, "c-1", evt.CustomerID)
	assert.True(t, evt.Total.Equal(decimal.RequireFromString("2200.00")))
}

func TestPaymentCompletedEvent_ToleratesUnknownFields(t *testing.T) {
	body := []byte(`{"order_id": "o-1", "success": false, "reason": "insufficient_funds", "extra": {"a": 1}}`)

	var evt PaymentCompletedEvent
	require.NoError(t, json.Unmarshal(body, &evt))
	assert.Equal(t, "o-1", evt.OrderID)
	assert.False(t, evt.Success)
	assert.Equal(t, "insufficient_funds", evt.Reason)
}

func TestOrderCreatedEvent_TotalPrecision(t *testing.T) {
	evt := OrderCreatedEvent{OrderID: "o-1", CustomerID: "c-1", Total: decimal.RequireFromString("0.10").Add(decimal.RequireFromString("0.20"))}

	body, err := json.Marshal(evt)
	require.NoError(t, err)

	var back OrderCreatedEvent
	require.NoError(t, json.Unmarshal(body, &back))
	assert.True(t, back.Total.Equal(decimal.RequireFromString("0.30")))
}
