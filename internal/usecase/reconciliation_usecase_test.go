package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
	"github.com/iho/ledgerbook/internal/usecase/mocks"
)

func TestReconciliationUseCase_ReconciledAccount(t *testing.T) {
	ctx := context.Background()
	ledger, store, _ := newMemoryLedger(true)

	_, err := ledger.Credit(ctx, "1001", dec(t, "1230.00"))
	require.NoError(t, err)
	_, err = ledger.Debit(ctx, "1001", dec(t, "382.00"))
	require.NoError(t, err)

	uc := usecase.NewReconciliationUseCase(store, store, store)
	result, err := uc.ReconcileAccount(ctx, "1001")
	require.NoError(t, err)

	assert.True(t, result.IsReconciled)
	assert.Equal(t, "848.00", result.RecordedBalance.StringFixed(2))
	assert.Equal(t, "848.00", result.CalculatedBalance.StringFixed(2))
	assert.True(t, result.Difference.IsZero())
	assert.False(t, result.CheckedAt.IsZero())
}

func TestReconciliationUseCase_ReportFindsDrift(t *testing.T) {
	ctx := context.Background()
	ledger, store, _ := newMemoryLedger(true)

	_, err := ledger.Credit(ctx, "ok", dec(t, "10"))
	require.NoError(t, err)

	// A balance change with no matching entry.
	_, err = store.ApplyDelta(ctx, nil, "drifted", decimal.NewFromInt(10))
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, nil, domain.NewLedgerEntry("drifted", decimal.NewFromInt(4), domain.Credit, "t1", time.Now())))

	uc := usecase.NewReconciliationUseCase(store, store, store)
	report, err := uc.GenerateReconciliationReport(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalAccounts)
	assert.Equal(t, 1, report.ReconciledAccounts)
	require.Len(t, report.Discrepancies, 1)

	drift := report.Discrepancies[0]
	assert.Equal(t, "drifted", drift.AccountNumber)
	assert.Equal(t, "6", drift.Difference.String())

	// Reconciliation reports only; the balance is left as recorded.
	balance, err := store.GetOrZero(ctx, nil, "drifted")
	require.NoError(t, err)
	assert.Equal(t, "10", balance.String())
}

func TestReconciliationUseCase_StorageFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	txManager := mocks.NewMockTransactionManager(ctrl)
	tx := mocks.NewMockTransaction(ctrl)
	entries := mocks.NewMockEntryStore(ctrl)
	balances := mocks.NewMockBalanceStore(ctrl)

	txManager.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	balances.EXPECT().LockAccount(gomock.Any(), tx, "acc").Return(nil)
	balances.EXPECT().GetOrZero(gomock.Any(), tx, "acc").Return(decimal.NewFromInt(1), nil)
	entries.EXPECT().SumByAccount(gomock.Any(), tx, "acc").Return(decimal.Zero, errors.New("io error"))
	tx.EXPECT().Rollback(gomock.Any()).Return(nil)

	uc := usecase.NewReconciliationUseCase(txManager, entries, balances)
	_, err := uc.ReconcileAccount(context.Background(), "acc")
	if !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("expected storage failure, got %v", err)
	}
}

func TestReconciliationUseCase_ListFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	balances := mocks.NewMockBalanceStore(ctrl)
	balances.EXPECT().ListAccounts(gomock.Any(), gomock.Any(), 0).Return(nil, errors.New("gone"))

	uc := usecase.NewReconciliationUseCase(mocks.NewMockTransactionManager(ctrl), mocks.NewMockEntryStore(ctrl), balances)
	_, err := uc.GenerateReconciliationReport(context.Background())
	if !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("expected storage failure, got %v", err)
	}
}
