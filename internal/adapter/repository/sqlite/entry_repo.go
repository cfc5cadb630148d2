package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

const (
	appendEntry = `INSERT INTO ledger_entries (transaction_id, account_number, amount, accounting_type, created_at)
VALUES (?, ?, ?, ?, ?)`

	listEntriesByAccount = `SELECT transaction_id, account_number, amount, accounting_type, created_at
FROM ledger_entries
WHERE account_number = ?
ORDER BY id DESC
LIMIT ?`

	listEntries = `SELECT transaction_id, account_number, amount, accounting_type, created_at
FROM ledger_entries
ORDER BY id DESC
LIMIT ?`
)

// EntryRepository implements usecase.EntryStore.
type EntryRepository struct {
	db *sql.DB
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(db *sql.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

// Append inserts an entry. Amounts are stored as exact decimal text.
func (r *EntryRepository) Append(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	q, err := conn(r.db, tx)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, appendEntry,
		entry.TransactionID,
		entry.AccountNumber,
		formatDecimal(entry.Amount),
		string(entry.AccountingType.Code()),
		formatTime(entry.CreatedAt),
	)
	return err
}

// QueryByAccount lists entries of an account, newest first.
func (r *EntryRepository) QueryByAccount(ctx context.Context, tx usecase.Transaction, accountNumber string, limit *int) ([]*domain.LedgerEntry, error) {
	q, err := conn(r.db, tx)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, listEntriesByAccount, accountNumber, sqlLimit(limit))
	if err != nil {
		return nil, err
	}

	return scanEntries(rows)
}

// QueryAll lists entries across all accounts, newest first.
func (r *EntryRepository) QueryAll(ctx context.Context, tx usecase.Transaction, limit *int) ([]*domain.LedgerEntry, error) {
	q, err := conn(r.db, tx)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, listEntries, sqlLimit(limit))
	if err != nil {
		return nil, err
	}

	return scanEntries(rows)
}

// sqlLimit maps a nil limit to -1, which SQLite reads as no limit.
func sqlLimit(limit *int) int {
	if limit == nil {
		return -1
	}
	return *limit
}

func scanEntries(rows *sql.Rows) ([]*domain.LedgerEntry, error) {
	defer rows.Close()

	entries := make([]*domain.LedgerEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// SumByAccount returns the signed sum of the account's entries. The sum is
// computed with exact decimals rather than SQLite's floating point SUM.
func (r *EntryRepository) SumByAccount(ctx context.Context, tx usecase.Transaction, accountNumber string) (decimal.Decimal, error) {
	entries, err := r.QueryByAccount(ctx, tx, accountNumber, nil)
	if err != nil {
		return decimal.Zero, err
	}

	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.SignedAmount())
	}

	return sum, nil
}

func scanEntry(rows *sql.Rows) (*domain.LedgerEntry, error) {
	var (
		transactionID, accountNumber, amount, typeCode, createdAt string
	)
	if err := rows.Scan(&transactionID, &accountNumber, &amount, &typeCode, &createdAt); err != nil {
		return nil, err
	}

	accountingType, err := domain.ParseTypeCode(typeCode)
	if err != nil {
		return nil, err
	}

	value, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount %q: %w", amount, err)
	}

	at, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	return domain.NewLedgerEntry(accountNumber, value, accountingType, transactionID, at), nil
}

// formatDecimal keeps the scale so 1230.00 reads back as 1230.00.
func formatDecimal(d decimal.Decimal) string {
	if d.Exponent() < 0 {
		return d.StringFixed(-d.Exponent())
	}
	return d.String()
}

// timeLayout has a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt timestamp %q: %w", s, err)
	}
	return t, nil
}
