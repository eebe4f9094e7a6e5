package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shopflow/internal/contracts"
	"shopflow/internal/inbox"
	"shopflow/internal/outbox"
	"shopflow/internal/trace"
)

// ConsumerName identifies this service in inbox records.
const ConsumerName = "order-service"

var ErrOrderNotFound = errors.New("order not found")

// StatusNotifier pushes finalized statuses to connected watchers.
type StatusNotifier interface {
	BroadcastOrderUpdate(orderID, status string)
}

type Service struct {
	pool   *pgxpool.Pool
	box    *outbox.PgStore
	trace  *trace.Store
	hub    StatusNotifier
	logger *slog.Logger
}

func NewService(pool *pgxpool.Pool, box *outbox.PgStore, traceStore *trace.Store, hub StatusNotifier, logger *slog.Logger) *Service {
	return &Service{
		pool:   pool,
		box:    box,
		trace:  traceStore,
		hub:    hub,
		logger: logger,
	}
}

// Create writes the order, its items and the OrderCreated outbox row in one
// transaction. The caller gets a Pending order back as soon as the commit
// lands; publication happens asynchronously from the outbox.
func (s *Service) Create(ctx context.Context, customerID uuid.UUID, items []Item, traceID string) (*Order, error) {
	if err := ValidateItems(items); err != nil {
		return nil, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	orderID := uuid.New()
	o := &Order{
		ID:         orderID.String(),
		CustomerID: customerID.String(),
		Total:      Total(items),
		Status:     StatusPending,
		Items:      items,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, customer_id, total, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		orderID, customerID, o.Total, StatusPending, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for _, it := range items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), orderID, it.ProductID, it.Quantity, it.UnitPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	event := contracts.OrderCreatedEvent{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Total:      o.Total,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	headers := map[string]string{}
	if traceID != "" {
		headers[contracts.TraceHeader] = traceID
	}
	if err := s.box.Enqueue(ctx, tx, outbox.NewMessage(contracts.EventOrderCreated, payload, headers)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.trace.Record(traceID, fmt.Sprintf("Order:Create: saved order %s, queued OrderCreated", o.ID))
	return o, nil
}

func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	var o Order
	err := s.pool.QueryRow(ctx, `
		SELECT id, customer_id, total, status, created_at, updated_at
		FROM orders
		WHERE id = $1`,
		orderID,
	).Scan(&o.ID, &o.CustomerID, &o.Total, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := s.loadItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (s *Service) List(ctx context.Context, customerID uuid.UUID) ([]Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, customer_id, total, status, created_at, updated_at
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC`, customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var result []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.Total, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (s *Service) loadItems(ctx context.Context, orderID uuid.UUID) ([]Item, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = $1`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ApplyPaymentResult finalizes the saga for one order. The inbox insert, the
// status update and the commit form one atomic unit keyed by the broker
// message id, so redeliveries change nothing. An unknown order is logged and
// acknowledged: it will not appear by retrying.
func (s *Service) ApplyPaymentResult(ctx context.Context, messageID string, evt contracts.PaymentCompletedEvent, traceID string) error {
	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		return fmt.Errorf("%w: invalid order id %q: %v", contracts.ErrMalformedEvent, evt.OrderID, err)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	applied, err := inbox.Mark(ctx, tx, messageID, ConsumerName)
	if err != nil {
		return err
	}
	if !applied {
		// Duplicate delivery.
		return nil
	}

	status, _ := Transition(StatusPending, evt.Success)

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3`,
		orderID, status, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var current Status
		err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&current)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// The order never existed here. Keep the inbox record and ack so
			// the pipeline is not wedged on a structurally absent reference.
			s.logger.Warn("payment result for unknown order", "order_id", evt.OrderID, "message_id", messageID)
		case err != nil:
			return fmt.Errorf("check order status: %w", err)
		default:
			// Terminal already; a late outcome never moves it back.
			s.logger.Warn("payment result for finalized order",
				"order_id", evt.OrderID, "status", current, "message_id", messageID)
		}
		return tx.Commit(ctx)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.trace.Record(traceID, fmt.Sprintf("Order:PaymentCompleted consumed; order %s -> %s", evt.OrderID, status))
	if s.hub != nil {
		s.hub.BroadcastOrderUpdate(evt.OrderID, string(status))
	}
	return nil
}
