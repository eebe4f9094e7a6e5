package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusDead    Status = "dead"
)

const (
	// claimLease is how long a claimed row stays invisible to other
	// dispatcher replicas. A replica that crashes between claim and publish
	// loses the lease and the row becomes claimable again.
	claimLease = 30 * time.Second

	// maxAttempts bounds retries before a row is parked as dead for
	// operator inspection.
	maxAttempts = 10
)

// Message is one event an aggregate mutation must eventually emit. Its ID is
// the broker-level message id and the dedup key for downstream inboxes.
type Message struct {
	ID        uuid.UUID
	EventType string
	Payload   []byte
	Headers   map[string]string
	Attempts  int
	Status    Status
	CreatedAt time.Time
	SentAt    *time.Time
}

func NewMessage(eventType string, payload []byte, headers map[string]string) Message {
	if headers == nil {
		headers = map[string]string{}
	}
	return Message{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payload,
		Headers:   headers,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// PgStore persists outbox rows in one table of the owning service's database.
type PgStore struct {
	pool  *pgxpool.Pool
	table string
}

func NewPgStore(pool *pgxpool.Pool, table string) *PgStore {
	return &PgStore{pool: pool, table: table}
}

// Enqueue inserts the message inside the caller's transaction, so the domain
// mutation and the event intent commit or roll back together.
func (s *PgStore) Enqueue(ctx context.Context, tx pgx.Tx, msg Message) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, event_type, payload, headers, attempts, status, next_attempt, created_at)
		VALUES ($1, $2, $3, $4, 0, $5, NOW(), $6)`, s.table)
	if _, err := tx.Exec(ctx, query,
		msg.ID, msg.EventType, msg.Payload, msg.Headers, StatusPending, msg.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}

// ClaimBatch selects up to limit pending rows oldest-first and pushes their
// next_attempt forward by the claim lease, all in one transaction. SKIP LOCKED
// plus the lease keeps two replicas from claiming the same rows.
func (s *PgStore) ClaimBatch(ctx context.Context, limit int) ([]Message, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		SELECT id, event_type, payload, headers, attempts
		FROM %s
		WHERE status = $1 AND next_attempt <= NOW()
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, s.table)

	rows, err := tx.Query(ctx, query, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var items []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.EventType, &m.Payload, &m.Headers, &m.Attempts); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(items) == 0 {
		return nil, tx.Commit(ctx)
	}

	releaseAt := time.Now().Add(claimLease)
	update := fmt.Sprintf(`UPDATE %s SET next_attempt = $2 WHERE id = $1`, s.table)
	for _, m := range items {
		if _, err := tx.Exec(ctx, update, m.ID, releaseAt); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return items, nil
}

// MarkSent flips a row to sent. Re-marking an already sent row is a no-op.
func (s *PgStore) MarkSent(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $2, sent_at = NOW()
		WHERE id = $1 AND status <> $2`, s.table)
	if _, err := s.pool.Exec(ctx, query, id, StatusSent); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// MarkFailure records a failed publish attempt: the row is rescheduled with
// exponential backoff, or parked as dead once attempts are exhausted.
func (s *PgStore) MarkFailure(ctx context.Context, id uuid.UUID, attempts int) error {
	status, delay := nextAttemptState(attempts)
	query := fmt.Sprintf(`
		UPDATE %s
		SET attempts = $2, status = $3, next_attempt = $4
		WHERE id = $1 AND status <> $5`, s.table)
	if _, err := s.pool.Exec(ctx, query, id, attempts, status, time.Now().Add(delay), StatusSent); err != nil {
		return fmt.Errorf("mark failure: %w", err)
	}
	return nil
}

// nextAttemptState decides what a failed attempt does to the row: retry with
// capped exponential backoff, or dead-letter past maxAttempts.
func nextAttemptState(attempts int) (Status, time.Duration) {
	if attempts >= maxAttempts {
		return StatusDead, 0
	}
	return StatusPending, retryDelay(attempts)
}

func retryDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 6 {
		attempts = 6
	}
	delay := time.Duration(1<<attempts) * time.Second
	if delay > time.Minute {
		delay = time.Minute
	}
	return delay
}
