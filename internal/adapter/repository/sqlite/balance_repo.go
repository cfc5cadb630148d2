package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

const (
	getBalance = `SELECT balance FROM balances WHERE account_number = ?`

	upsertBalance = `INSERT INTO balances (account_number, balance, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (account_number) DO UPDATE
SET balance = excluded.balance, updated_at = excluded.updated_at`

	listBalances = `SELECT account_number, balance, updated_at FROM balances
ORDER BY account_number
LIMIT ? OFFSET ?`
)

// BalanceRepository implements usecase.BalanceStore.
type BalanceRepository struct {
	db        *sql.DB
	txManager *TxManager
	now       func() time.Time
}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository(db *sql.DB) *BalanceRepository {
	return &BalanceRepository{
		db:        db,
		txManager: NewTxManager(db),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// GetOrZero returns the recorded balance or zero. It never inserts.
func (r *BalanceRepository) GetOrZero(ctx context.Context, tx usecase.Transaction, accountNumber string) (decimal.Decimal, error) {
	q, err := conn(r.db, tx)
	if err != nil {
		return decimal.Zero, err
	}

	return readBalance(ctx, q, accountNumber)
}

// ApplyDelta adds delta to the balance. The read and the write run in the
// same immediate transaction, which holds the database write lock, so no
// other writer can interleave.
func (r *BalanceRepository) ApplyDelta(ctx context.Context, tx usecase.Transaction, accountNumber string, delta decimal.Decimal) (decimal.Decimal, error) {
	if tx == nil {
		own, err := r.txManager.Begin(ctx)
		if err != nil {
			return decimal.Zero, err
		}
		defer own.Rollback(ctx)

		balance, err := r.ApplyDelta(ctx, own, accountNumber, delta)
		if err != nil {
			return decimal.Zero, err
		}
		return balance, own.Commit(ctx)
	}

	q, err := conn(r.db, tx)
	if err != nil {
		return decimal.Zero, err
	}

	current, err := readBalance(ctx, q, accountNumber)
	if err != nil {
		return decimal.Zero, err
	}

	balance := current.Add(delta)
	if _, err := q.ExecContext(ctx, upsertBalance, accountNumber, formatDecimal(balance), formatTime(r.now())); err != nil {
		return decimal.Zero, err
	}

	return balance, nil
}

// LockAccount needs no statement: transactions begin IMMEDIATE and already
// exclude every other writer.
func (r *BalanceRepository) LockAccount(ctx context.Context, tx usecase.Transaction, accountNumber string) error {
	if tx == nil {
		return errors.New("sqlite: LockAccount requires a transaction")
	}
	_, err := conn(r.db, tx)
	return err
}

// ListAccounts lists balance records ordered by account number.
func (r *BalanceRepository) ListAccounts(ctx context.Context, limit, offset int) ([]*domain.BalanceRecord, error) {
	limit, offset, _ = domain.ValidatePagination(limit, offset)

	rows, err := r.db.QueryContext(ctx, listBalances, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*domain.BalanceRecord, 0)
	for rows.Next() {
		var account, balance, updatedAt string
		if err := rows.Scan(&account, &balance, &updatedAt); err != nil {
			return nil, err
		}

		value, err := decimal.NewFromString(balance)
		if err != nil {
			return nil, fmt.Errorf("corrupt balance %q: %w", balance, err)
		}
		at, err := parseTime(updatedAt)
		if err != nil {
			return nil, err
		}

		records = append(records, &domain.BalanceRecord{AccountNumber: account, Balance: value, UpdatedAt: at})
	}

	return records, rows.Err()
}

func readBalance(ctx context.Context, q querier, accountNumber string) (decimal.Decimal, error) {
	var raw string
	err := q.QueryRowContext(ctx, getBalance, accountNumber).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}

	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt balance %q: %w", raw, err)
	}

	return balance, nil
}
