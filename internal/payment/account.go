package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountExists   = errors.New("account already exists")
	ErrAccountNotFound = errors.New("account not found")
)

// AccountService manages customer balances that fund payments.
type AccountService struct {
	pool *pgxpool.Pool
}

func NewAccountService(pool *pgxpool.Pool) *AccountService {
	return &AccountService{pool: pool}
}

func (s *AccountService) Create(ctx context.Context, customerID uuid.UUID) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (customer_id, balance, created_at, updated_at)
		VALUES ($1, 0, $2, $2)`,
		customerID, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAccountExists
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *AccountService) Deposit(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive")
	}
	now := time.Now().UTC()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE accounts
		SET balance = balance + $2, updated_at = NOW()
		WHERE customer_id = $1`, customerID, amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return decimal.Zero, ErrAccountNotFound
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO account_transactions (id, customer_id, amount, kind, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), customerID, amount, "deposit", now,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("insert transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, err
	}

	return s.GetBalance(ctx, customerID)
}

func (s *AccountService) GetBalance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT balance FROM accounts WHERE customer_id = $1`,
		customerID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrAccountNotFound
		}
		return decimal.Zero, fmt.Errorf("select balance: %w", err)
	}
	return balance, nil
}
