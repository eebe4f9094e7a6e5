package payment

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
	"github.com/shopspring/decimal"

	"shopflow/internal/contracts"
	"shopflow/internal/inbox"
	"shopflow/internal/outbox"
	"shopflow/internal/trace"
)

// ConsumerName identifies this service in inbox records.
const ConsumerName = "payment-service"

type Status string

const (
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Processor decides payment outcomes for incoming orders. Both outcomes are
// real: an order is paid when the customer's account covers the total and
// failed otherwise (missing account or insufficient funds).
type Processor struct {
	pool   *pgxpool.Pool
	box    *outbox.PgStore
	trace  *trace.Store
	logger *slog.Logger
}

func NewProcessor(pool *pgxpool.Pool, box *outbox.PgStore, traceStore *trace.Store, logger *slog.Logger) *Processor {
	return &Processor{
		pool:   pool,
		box:    box,
		trace:  traceStore,
		logger: logger,
	}
}

// HandleOrderCreated runs the payment step of the saga as one transaction:
// inbox gate, account debit, payment record, and the PaymentCompleted outbox
// row. Redelivery of the same message id is a committed no-op.
func (p *Processor) HandleOrderCreated(ctx context.Context, messageID string, evt contracts.OrderCreatedEvent, traceID string) error {
	customerID, err := uuid.Parse(evt.CustomerID)
	if err != nil {
		return fmt.Errorf("%w: invalid customer id %q: %v", contracts.ErrMalformedEvent, evt.CustomerID, err)
	}
	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		return fmt.Errorf("%w: invalid order id %q: %v", contracts.ErrMalformedEvent, evt.OrderID, err)
	}

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	applied, err := inbox.Mark(ctx, tx, messageID, ConsumerName)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	p.trace.Record(traceID, fmt.Sprintf("Payment:OrderCreated consumed; processing order %s", evt.OrderID))

	_, err = tx.Exec(ctx, `
		INSERT INTO payments (order_id, customer_id, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (order_id) DO NOTHING`,
		orderID, customerID, evt.Total, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("insert payment row: %w", err)
	}

	success, reason, err := p.charge(ctx, tx, customerID, orderID, evt.Total)
	if err != nil {
		return err
	}

	status := StatusSucceeded
	if !success {
		status = StatusFailed
	}
	_, err = tx.Exec(ctx, `
		UPDATE payments
		SET status = $2, reason = $3, updated_at = NOW()
		WHERE order_id = $1`,
		orderID, status, reason,
	)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}

	result := contracts.PaymentCompletedEvent{
		OrderID: evt.OrderID,
		Success: success,
		Reason:  reason,
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal payment event: %w", err)
	}

	headers := map[string]string{}
	if traceID != "" {
		headers[contracts.TraceHeader] = traceID
	}
	if err := p.box.Enqueue(ctx, tx, outbox.NewMessage(contracts.EventPaymentCompleted, payload, headers)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	p.trace.Record(traceID, fmt.Sprintf("Payment: order %s -> %s; queued PaymentCompleted", evt.OrderID, status))
	return nil
}

// charge locks the account row and debits it when the balance covers the
// total. It returns success=false with a reason instead of an error for
// business-level declines.
func (p *Processor) charge(ctx context.Context, tx pgx.Tx, customerID, orderID uuid.UUID, total decimal.Decimal) (bool, string, error) {
	var balance decimal.Decimal
	err := tx.QueryRow(ctx, `
		SELECT balance
		FROM accounts
		WHERE customer_id = $1
		FOR UPDATE`,
		customerID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, "account_missing", nil
		}
		return false, "", fmt.Errorf("select balance: %w", err)
	}

	if balance.LessThan(total) {
		return false, "insufficient_funds", nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE accounts
		SET balance = balance - $2, updated_at = NOW()
		WHERE customer_id = $1`, customerID, total)
	if err != nil {
		return false, "", fmt.Errorf("deduct balance: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO account_transactions (id, customer_id, order_id, amount, kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), customerID, orderID, total, "debit", time.Now().UTC(),
	)
	if err != nil {
		return false, "", fmt.Errorf("insert account transaction: %w", err)
	}

	return true, "", nil
}
