package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending Status = "Pending"
	StatusPaid    Status = "Paid"
	StatusFailed  Status = "Failed"
)

// Terminal reports whether no further status transition is valid.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusFailed
}

var (
	ErrAlreadyTerminal = errors.New("order already in a terminal status")

	// ErrInvalidOrder marks command rejections that happen before any
	// transaction is opened.
	ErrInvalidOrder = errors.New("invalid order")
)

// Transition returns the status an order moves to when its payment outcome
// arrives. Pending is the only state with outgoing transitions.
func Transition(current Status, success bool) (Status, error) {
	if current != StatusPending {
		return current, ErrAlreadyTerminal
	}
	if success {
		return StatusPaid, nil
	}
	return StatusFailed, nil
}

type Item struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type Order struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customer_id"`
	Total      decimal.Decimal `json:"total"`
	Status     Status          `json:"status"`
	Items      []Item          `json:"items"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Total sums quantity times unit price over the items. It runs once at
// creation; the stored total is never recomputed afterwards.
func Total(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func ValidateItems(items []Item) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: order must contain at least one item", ErrInvalidOrder)
	}
	for i, it := range items {
		if it.ProductID == "" {
			return fmt.Errorf("%w: item %d: missing product id", ErrInvalidOrder, i)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %d: quantity must be positive", ErrInvalidOrder, i)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %d: unit price must not be negative", ErrInvalidOrder, i)
		}
	}
	return nil
}
