package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/infrastructure/postgres/generated"
	"github.com/iho/ledgerbook/internal/usecase"
)

// BalanceRepository implements usecase.BalanceStore.
type BalanceRepository struct {
	queries *generated.Queries
	now     func() time.Time
}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository(db generated.DBTX) *BalanceRepository {
	return &BalanceRepository{
		queries: generated.New(db),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// GetOrZero returns the recorded balance or zero. It never inserts.
func (r *BalanceRepository) GetOrZero(ctx context.Context, tx usecase.Transaction, accountNumber string) (decimal.Decimal, error) {
	queries, err := queriesFor(r.queries, tx)
	if err != nil {
		return decimal.Zero, err
	}

	balance, err := queries.GetBalance(ctx, accountNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}

	return numericToDecimal(balance), nil
}

// ApplyDelta adds delta to the stored balance in a single upsert statement.
func (r *BalanceRepository) ApplyDelta(ctx context.Context, tx usecase.Transaction, accountNumber string, delta decimal.Decimal) (decimal.Decimal, error) {
	queries, err := queriesFor(r.queries, tx)
	if err != nil {
		return decimal.Zero, err
	}

	balance, err := queries.ApplyBalanceDelta(ctx, generated.ApplyBalanceDeltaParams{
		AccountNumber: accountNumber,
		Delta:         decimalToNumeric(delta),
		UpdatedAt:     timeToPgTimestamptz(r.now()),
	})
	if err != nil {
		return decimal.Zero, err
	}

	return numericToDecimal(balance), nil
}

// LockAccount takes a transaction-scoped advisory lock on the account.
// It works for accounts that have no balance row yet.
func (r *BalanceRepository) LockAccount(ctx context.Context, tx usecase.Transaction, accountNumber string) error {
	if tx == nil {
		return errors.New("postgres: LockAccount requires a transaction")
	}

	queries, err := queriesFor(r.queries, tx)
	if err != nil {
		return err
	}

	return queries.LockAccount(ctx, accountNumber)
}

// ListAccounts lists balance records ordered by account number.
func (r *BalanceRepository) ListAccounts(ctx context.Context, limit, offset int) ([]*domain.BalanceRecord, error) {
	limit, offset, _ = domain.ValidatePagination(limit, offset)

	rows, err := r.queries.ListBalances(ctx, generated.ListBalancesParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, err
	}

	records := make([]*domain.BalanceRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, &domain.BalanceRecord{
			AccountNumber: row.AccountNumber,
			Balance:       numericToDecimal(row.Balance),
			UpdatedAt:     row.UpdatedAt.Time,
		})
	}

	return records, nil
}
