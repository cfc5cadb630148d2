package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
)

// ReconciliationUseCase recomputes balances from entry history and compares
// them against the live balance records. It never rewrites a balance.
type ReconciliationUseCase struct {
	txManager TransactionManager
	entries   EntryStore
	balances  BalanceStore
	clock     Clock
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(
	txManager TransactionManager,
	entries EntryStore,
	balances BalanceStore,
) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		txManager: txManager,
		entries:   entries,
		balances:  balances,
		clock:     SystemClock{},
	}
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	AccountNumber     string
	RecordedBalance   decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	IsReconciled      bool
	CheckedAt         time.Time
}

// ReconcileAccount compares the recorded balance of one account with the
// signed sum of its entries. Both reads happen under the account lock.
func (uc *ReconciliationUseCase) ReconcileAccount(ctx context.Context, accountNumber string) (*ReconciliationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, domain.NewStorageError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := uc.balances.LockAccount(ctx, tx, accountNumber); err != nil {
		return nil, domain.NewStorageError("lock account", err)
	}

	recorded, err := uc.balances.GetOrZero(ctx, tx, accountNumber)
	if err != nil {
		return nil, domain.NewStorageError("get balance", err)
	}

	calculated, err := uc.entries.SumByAccount(ctx, tx, accountNumber)
	if err != nil {
		return nil, domain.NewStorageError("sum entries", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.NewStorageError("commit transaction", err)
	}

	difference := recorded.Sub(calculated)

	return &ReconciliationResult{
		AccountNumber:     accountNumber,
		RecordedBalance:   recorded,
		CalculatedBalance: calculated,
		Difference:        difference,
		IsReconciled:      difference.IsZero(),
		CheckedAt:         uc.clock.Now(),
	}, nil
}

// ReconcileAllAccounts reconciles every account that has a balance record.
func (uc *ReconciliationUseCase) ReconcileAllAccounts(ctx context.Context) ([]*ReconciliationResult, error) {
	var results []*ReconciliationResult

	for offset := 0; ; offset += reconciliationPageSize {
		records, err := uc.balances.ListAccounts(ctx, reconciliationPageSize, offset)
		if err != nil {
			return nil, domain.NewStorageError("list accounts", err)
		}

		for _, record := range records {
			result, err := uc.ReconcileAccount(ctx, record.AccountNumber)
			if err != nil {
				return nil, fmt.Errorf("failed to reconcile account %s: %w", record.AccountNumber, err)
			}
			results = append(results, result)
		}

		if len(records) < reconciliationPageSize {
			break
		}
	}

	return results, nil
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalAccounts      int
	ReconciledAccounts int
	Discrepancies      []*ReconciliationResult
	CheckedAt          time.Time
}

// GenerateReconciliationReport reconciles all accounts and collects discrepancies.
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context) (*ReconciliationReport, error) {
	results, err := uc.ReconcileAllAccounts(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReconciliationReport{
		TotalAccounts: len(results),
		Discrepancies: make([]*ReconciliationResult, 0),
		CheckedAt:     uc.clock.Now(),
	}

	for _, result := range results {
		if result.IsReconciled {
			report.ReconciledAccounts++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}

	return report, nil
}
