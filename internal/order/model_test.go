package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotal(t *testing.T) {
	items := []Item{
		{ProductID: "p1", Quantity: 2, UnitPrice: decimal.RequireFromString("500.00")},
		{ProductID: "p2", Quantity: 1, UnitPrice: decimal.RequireFromString("1200.00")},
	}

	total := Total(items)
	assert.True(t, total.Equal(decimal.RequireFromString("2200.00")), "got %s", total)
}

func TestTotal_Empty(t *testing.T) {
	assert.True(t, Total(nil).IsZero())
}

func TestValidateItems(t *testing.T) {
	valid := Item{ProductID: "p1", Quantity: 1, UnitPrice: decimal.RequireFromString("9.99")}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, ValidateItems([]Item{valid}))
	})

	t.Run("empty order", func(t *testing.T) {
		assert.ErrorIs(t, ValidateItems(nil), ErrInvalidOrder)
	})

	t.Run("missing product id", func(t *testing.T) {
		it := valid
		it.ProductID = ""
		assert.Error(t, ValidateItems([]Item{it}))
	})

	t.Run("zero quantity", func(t *testing.T) {
		it := valid
		it.Quantity = 0
		assert.Error(t, ValidateItems([]Item{it}))
	})

	t.Run("negative unit price", func(t *testing.T) {
		it := valid
		it.UnitPrice = decimal.RequireFromString("-1")
		assert.Error(t, ValidateItems([]Item{it}))
	})
}

func TestTransition(t *testing.T) {
	t.Run("pending to paid", func(t *testing.T) {
		next, err := Transition(StatusPending, true)
		require.NoError(t, err)
		assert.Equal(t, StatusPaid, next)
	})

	t.Run("pending to failed", func(t *testing.T) {
		next, err := Transition(StatusPending, false)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, next)
	})

	t.Run("terminal states never move", func(t *testing.T) {
		for _, s := range []Status{StatusPaid, StatusFailed} {
			for _, success := range []bool{true, false} {
				next, err := Transition(s, success)
				assert.ErrorIs(t, err, ErrAlreadyTerminal)
				assert.Equal(t, s, next)
			}
		}
	})
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusPaid.Terminal())
	assert.True(t, StatusFailed.Terminal())
}
