package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is a single credit or debit posted to an account.
// Balance is the account balance immediately after this entry was applied;
// it is derived at write time or reconstructed when reading history.
type LedgerEntry struct {
	CreatedAt      time.Time
	AccountNumber  string
	TransactionID  string
	Amount         decimal.Decimal
	AccountingType AccountingType
	Balance        decimal.Decimal
}

// NewLedgerEntry builds an entry with its identity fields set and no balance.
func NewLedgerEntry(accountNumber string, amount decimal.Decimal, accountingType AccountingType, transactionID string, createdAt time.Time) *LedgerEntry {
	return &LedgerEntry{
		AccountNumber:  accountNumber,
		Amount:         amount,
		AccountingType: accountingType,
		TransactionID:  transactionID,
		CreatedAt:      createdAt.UTC(),
	}
}

// SignedAmount returns the delta this entry applies to the balance.
func (e *LedgerEntry) SignedAmount() decimal.Decimal {
	return e.Amount.Mul(decimal.NewFromInt(int64(e.AccountingType.Sign())))
}

// ReconstructBalances fills in the as-of balance of each entry, given entries
// ordered newest first and the account's current balance.
func ReconstructBalances(entries []*LedgerEntry, current decimal.Decimal) {
	balance := current
	for _, e := range entries {
		e.Balance = balance
		balance = balance.Sub(e.SignedAmount())
	}
}
