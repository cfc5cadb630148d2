package postgres

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/infrastructure/postgres/generated"
	"github.com/iho/ledgerbook/internal/usecase"
)

// EntryRepository implements usecase.EntryStore.
type EntryRepository struct {
	queries *generated.Queries
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(db generated.DBTX) *EntryRepository {
	return &EntryRepository{
		queries: generated.New(db),
	}
}

// Append inserts an entry. The store assigns the row id that orders history.
func (r *EntryRepository) Append(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	queries, err := queriesFor(r.queries, tx)
	if err != nil {
		return err
	}

	return queries.AppendEntry(ctx, generated.AppendEntryParams{
		TransactionID:  entry.TransactionID,
		AccountNumber:  entry.AccountNumber,
		Amount:         decimalToNumeric(entry.Amount),
		AccountingType: string(entry.AccountingType.Code()),
		CreatedAt:      timeToPgTimestamptz(entry.CreatedAt),
	})
}

// QueryByAccount lists entries of an account, newest first.
func (r *EntryRepository) QueryByAccount(ctx context.Context, tx usecase.Transaction, accountNumber string, limit *int) ([]*domain.LedgerEntry, error) {
	queries, err := queriesFor(r.queries, tx)
	if err != nil {
		return nil, err
	}

	rows, err := queries.ListEntriesByAccount(ctx, generated.ListEntriesByAccountParams{
		AccountNumber: accountNumber,
		Limit:         limitToPgInt8(limit),
	})
	if err != nil {
		return nil, err
	}

	return rowsToEntries(rows)
}

// QueryAll lists entries across all accounts, newest first.
func (r *EntryRepository) QueryAll(ctx context.Context, tx usecase.Transaction, limit *int) ([]*domain.LedgerEntry, error) {
	queries, err := queriesFor(r.queries, tx)
	if err != nil {
		return nil, err
	}

	rows, err := queries.ListEntries(ctx, limitToPgInt8(limit))
	if err != nil {
		return nil, err
	}

	return rowsToEntries(rows)
}

// SumByAccount returns the signed sum of the account's entries.
func (r *EntryRepository) SumByAccount(ctx context.Context, tx usecase.Transaction, accountNumber string) (decimal.Decimal, error) {
	queries, err := queriesFor(r.queries, tx)
	if err != nil {
		return decimal.Zero, err
	}

	total, err := queries.SumEntriesByAccount(ctx, accountNumber)
	if err != nil {
		return decimal.Zero, err
	}

	return numericToDecimal(total), nil
}

func rowsToEntries(rows []generated.LedgerEntry) ([]*domain.LedgerEntry, error) {
	entries := make([]*domain.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := rowToEntry(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func rowToEntry(row generated.LedgerEntry) (*domain.LedgerEntry, error) {
	accountingType, err := domain.ParseTypeCode(row.AccountingType)
	if err != nil {
		return nil, err
	}

	return domain.NewLedgerEntry(
		row.AccountNumber,
		numericToDecimal(row.Amount),
		accountingType,
		row.TransactionID,
		row.CreatedAt.Time,
	), nil
}
