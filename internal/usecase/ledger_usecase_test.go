package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/ledgerbook/internal/adapter/repository/memory"
	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
	"github.com/iho/ledgerbook/internal/usecase/mocks"
)

type sequenceIDs struct {
	n atomic.Int64
}

func (s *sequenceIDs) Generate() string {
	return fmt.Sprintf("id-%04d", s.n.Add(1))
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func newMemoryLedger(consistent bool) (*usecase.LedgerUseCase, *memory.Store, *memory.Outbox) {
	store := memory.NewStore()
	outbox := memory.NewOutbox(store)
	uc := usecase.NewLedgerUseCase(usecase.LedgerConfig{
		TxManager:         store,
		Entries:           store,
		Balances:          store,
		Outbox:            outbox,
		IDGen:             &sequenceIDs{},
		ConsistentHistory: consistent,
	})
	return uc, store, outbox
}

func balancesOf(entries []*domain.LedgerEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Balance.StringFixed(2)
	}
	return out
}

func TestLedgerUseCase_ScenarioCreditDebitCredit(t *testing.T) {
	for _, consistent := range []bool{true, false} {
		t.Run(fmt.Sprintf("consistent=%v", consistent), func(t *testing.T) {
			ctx := context.Background()
			uc, _, _ := newMemoryLedger(consistent)

			steps := []struct {
				typeCode domain.TypeCode
				amount   string
				balance  string
			}{
				{domain.TypeCodeCredit, "1230.00", "1230.00"},
				{domain.TypeCodeDebit, "382.00", "848.00"},
				{domain.TypeCodeCredit, "921.00", "1769.00"},
			}

			for _, step := range steps {
				entry, err := uc.AddEntry(ctx, usecase.AddEntryInput{
					AccountNumber: "1001",
					Amount:        dec(t, step.amount),
					TypeCode:      step.typeCode,
				})
				require.NoError(t, err)
				assert.Equal(t, step.balance, entry.Balance.StringFixed(2))
				assert.Equal(t, step.typeCode, entry.AccountingType.Code())
				assert.NotEmpty(t, entry.TransactionID)
			}

			history, err := uc.QueryHistory(ctx, usecase.QueryHistoryInput{AccountNumber: "1001"})
			require.NoError(t, err)
			assert.Equal(t, []string{"1769.00", "848.00", "1230.00"}, balancesOf(history))

			balance, err := uc.GetBalance(ctx, "1001")
			require.NoError(t, err)
			assert.Equal(t, "1769.00", balance.StringFixed(2))
		})
	}
}

func TestLedgerUseCase_DebitIntoNegative(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newMemoryLedger(true)

	entry, err := uc.Debit(ctx, "2002", dec(t, "50.00"))
	require.NoError(t, err)
	assert.Equal(t, "-50.00", entry.Balance.StringFixed(2))

	entry, err = uc.Credit(ctx, "2002", dec(t, "20.00"))
	require.NoError(t, err)
	assert.Equal(t, "-30.00", entry.Balance.StringFixed(2))

	history, err := uc.QueryHistory(ctx, usecase.QueryHistoryInput{AccountNumber: "2002"})
	require.NoError(t, err)
	assert.Equal(t, []string{"-30.00", "-50.00"}, balancesOf(history))
}

func TestLedgerUseCase_HistoryLimit(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newMemoryLedger(true)

	for _, amount := range []string{"10.00", "20.00", "30.00"} {
		_, err := uc.Credit(ctx, "3003", dec(t, amount))
		require.NoError(t, err)
	}

	limit := func(n int) *int { return &n }

	history, err := uc.QueryHistory(ctx, usecase.QueryHistoryInput{AccountNumber: "3003", Limit: limit(2)})
	require.NoError(t, err)
	assert.Equal(t, []string{"60.00", "30.00"}, balancesOf(history))

	history, err = uc.QueryHistory(ctx, usecase.QueryHistoryInput{AccountNumber: "3003", Limit: limit(0)})
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)

	history, err = uc.QueryHistory(ctx, usecase.QueryHistoryInput{AccountNumber: "3003", Limit: limit(50)})
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestLedgerUseCase_EmptyAccount(t *testing.T) {
	ctx := context.Background()
	uc, store, _ := newMemoryLedger(true)

	history, err := uc.QueryHistory(ctx, usecase.QueryHistoryInput{AccountNumber: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)

	balance, err := uc.GetBalance(ctx, "nobody")
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	// Reading must not create a balance record.
	records, err := store.ListAccounts(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLedgerUseCase_ZeroAmountIsAccepted(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newMemoryLedger(true)

	entry, err := uc.Credit(ctx, "4004", decimal.Zero)
	require.NoError(t, err)
	assert.True(t, entry.Balance.IsZero())
}

func TestLedgerUseCase_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	uc, store, _ := newMemoryLedger(true)

	_, err := uc.Credit(ctx, "5005", dec(t, "-1.00"))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = uc.AddEntry(ctx, usecase.AddEntryInput{AccountNumber: "5005", Amount: dec(t, "1"), TypeCode: "X"})
	assert.ErrorIs(t, err, domain.ErrUnknownTypeCode)

	negative := -1
	_, err = uc.QueryHistory(ctx, usecase.QueryHistoryInput{AccountNumber: "5005", Limit: &negative})
	assert.ErrorIs(t, err, domain.ErrInvalidLimit)

	entries, err := store.QueryByAccount(ctx, nil, "5005", nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLedgerUseCase_HistoryIsStableAcrossReads(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newMemoryLedger(true)

	_, err := uc.Credit(ctx, "6006", dec(t, "100"))
	require.NoError(t, err)
	_, err = uc.Debit(ctx, "6006", dec(t, "40"))
	require.NoError(t, err)

	first, err := uc.QueryHistory(ctx, usecase.QueryHistoryInput{AccountNumber: "6006"})
	require.NoError(t, err)
	first[0].Amount = dec(t, "1000000")
	first[0].Balance = dec(t, "1000000")

	second, err := uc.QueryHistory(ctx, usecase.QueryHistoryInput{AccountNumber: "6006"})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, first[0].TransactionID, second[0].TransactionID)
	assert.Equal(t, "40.00", second[0].Amount.StringFixed(2))
	assert.Equal(t, "60.00", second[0].Balance.StringFixed(2))
}

func TestLedgerUseCase_ConcurrentCredits(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newMemoryLedger(true)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := uc.Credit(ctx, "7007", decimal.NewFromInt(1)); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	balance, err := uc.GetBalance(ctx, "7007")
	require.NoError(t, err)
	assert.Equal(t, "100", balance.String())

	history, err := uc.QueryHistory(ctx, usecase.QueryHistoryInput{AccountNumber: "7007"})
	require.NoError(t, err)
	require.Len(t, history, 100)
	assert.Equal(t, "100", history[0].Balance.String())
	assert.Equal(t, "1", history[99].Balance.String())
}

func TestLedgerUseCase_OutboxEventCarriesBalance(t *testing.T) {
	ctx := context.Background()
	uc, _, outbox := newMemoryLedger(true)

	_, err := uc.Credit(ctx, "8008", dec(t, "12.50"))
	require.NoError(t, err)
	entry, err := uc.Debit(ctx, "8008", dec(t, "2.50"))
	require.NoError(t, err)

	events, err := outbox.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	last := events[1]
	assert.Equal(t, domain.EventTypeEntryPosted, last.EventType)
	assert.Equal(t, "8008", last.AggregateID)
	assert.Equal(t, entry.TransactionID, last.Payload["transaction_id"])
	assert.Equal(t, "D", last.Payload["accounting_type"])
	assert.Equal(t, "10", last.Payload["balance"])
}

func TestLedgerUseCase_AppendFailureLeavesBalanceUntouched(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	txManager := mocks.NewMockTransactionManager(ctrl)
	tx := mocks.NewMockTransaction(ctrl)
	entries := mocks.NewMockEntryStore(ctrl)
	balances := mocks.NewMockBalanceStore(ctrl)

	storeErr := errors.New("disk full")

	txManager.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	balances.EXPECT().LockAccount(gomock.Any(), tx, "9009").Return(nil)
	entries.EXPECT().Append(gomock.Any(), tx, gomock.Any()).Return(storeErr)
	balances.EXPECT().ApplyDelta(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	tx.EXPECT().Commit(gomock.Any()).Times(0)
	tx.EXPECT().Rollback(gomock.Any()).Return(nil)

	uc := usecase.NewLedgerUseCase(usecase.LedgerConfig{
		TxManager: txManager,
		Entries:   entries,
		Balances:  balances,
		IDGen:     &sequenceIDs{},
	})

	_, err := uc.Credit(context.Background(), "9009", decimal.NewFromInt(5))
	if !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
}

func TestLedgerUseCase_ApplyDeltaFailureRollsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	txManager := mocks.NewMockTransactionManager(ctrl)
	tx := mocks.NewMockTransaction(ctrl)
	entries := mocks.NewMockEntryStore(ctrl)
	balances := mocks.NewMockBalanceStore(ctrl)
	outbox := mocks.NewMockOutboxRepository(ctrl)

	txManager.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	balances.EXPECT().LockAccount(gomock.Any(), tx, "9010").Return(nil)
	entries.EXPECT().Append(gomock.Any(), tx, gomock.Any()).Return(nil)
	balances.EXPECT().ApplyDelta(gomock.Any(), tx, "9010", decimal.NewFromInt(-5)).
		Return(decimal.Zero, errors.New("constraint violated"))
	outbox.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	tx.EXPECT().Commit(gomock.Any()).Times(0)
	tx.EXPECT().Rollback(gomock.Any()).Return(nil)

	uc := usecase.NewLedgerUseCase(usecase.LedgerConfig{
		TxManager: txManager,
		Entries:   entries,
		Balances:  balances,
		Outbox:    outbox,
		IDGen:     &sequenceIDs{},
	})

	_, err := uc.Debit(context.Background(), "9010", decimal.NewFromInt(5))
	if !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("expected storage failure, got %v", err)
	}
}

func TestLedgerUseCase_BeginFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	txManager := mocks.NewMockTransactionManager(ctrl)
	metrics := mocks.NewMockLedgerMetrics(ctrl)

	txManager.EXPECT().Begin(gomock.Any()).Return(nil, errors.New("connection refused"))
	metrics.EXPECT().ObserveError("add_entry", gomock.Any())

	uc := usecase.NewLedgerUseCase(usecase.LedgerConfig{
		TxManager: txManager,
		Entries:   mocks.NewMockEntryStore(ctrl),
		Balances:  mocks.NewMockBalanceStore(ctrl),
		IDGen:     &sequenceIDs{},
		Metrics:   metrics,
	})

	_, err := uc.Credit(context.Background(), "9011", decimal.NewFromInt(1))
	if !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("expected storage failure, got %v", err)
	}
}

func TestLedgerUseCase_RetryReusesIdentity(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	txManager := mocks.NewMockTransactionManager(ctrl)
	tx := mocks.NewMockTransaction(ctrl)
	entries := mocks.NewMockEntryStore(ctrl)
	balances := mocks.NewMockBalanceStore(ctrl)
	retrier := mocks.NewMockRetrier(ctrl)
	clock := mocks.NewMockClock(ctrl)
	metrics := mocks.NewMockLedgerMetrics(ctrl)

	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock.EXPECT().Now().Return(fixed).Times(1)

	// Run the operation twice, as a retrier would after a conflict.
	retrier.EXPECT().Retry(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, op func() error) error {
			if err := op(); err == nil {
				t.Fatalf("expected first attempt to fail")
			}
			return op()
		})

	var seen []string
	txManager.EXPECT().Begin(gomock.Any()).Return(tx, nil).Times(2)
	balances.EXPECT().LockAccount(gomock.Any(), tx, "9012").Return(nil).Times(2)
	gomock.InOrder(
		entries.EXPECT().Append(gomock.Any(), tx, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ usecase.Transaction, e *domain.LedgerEntry) error {
				seen = append(seen, e.TransactionID)
				return errors.New("deadlock detected")
			}),
		entries.EXPECT().Append(gomock.Any(), tx, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ usecase.Transaction, e *domain.LedgerEntry) error {
				seen = append(seen, e.TransactionID)
				assert.True(t, e.CreatedAt.Equal(fixed))
				return nil
			}),
	)
	balances.EXPECT().ApplyDelta(gomock.Any(), tx, "9012", decimal.NewFromInt(3)).Return(decimal.NewFromInt(3), nil)
	tx.EXPECT().Commit(gomock.Any()).Return(nil)
	tx.EXPECT().Rollback(gomock.Any()).Return(nil).Times(2)
	metrics.EXPECT().ObserveEntryPosted(domain.TypeCodeCredit, gomock.Any())

	uc := usecase.NewLedgerUseCase(usecase.LedgerConfig{
		TxManager: txManager,
		Entries:   entries,
		Balances:  balances,
		IDGen:     &sequenceIDs{},
		Retrier:   retrier,
		Clock:     clock,
		Metrics:   metrics,
	})

	entry, err := uc.Credit(context.Background(), "9012", decimal.NewFromInt(3))
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, seen[0], seen[1])
	assert.Equal(t, seen[0], entry.TransactionID)
	assert.Equal(t, "3", entry.Balance.String())
}

func TestLedgerUseCase_InvalidLimitTouchesNoStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Mocks with no expectations fail the test on any call.
	uc := usecase.NewLedgerUseCase(usecase.LedgerConfig{
		TxManager: mocks.NewMockTransactionManager(ctrl),
		Entries:   mocks.NewMockEntryStore(ctrl),
		Balances:  mocks.NewMockBalanceStore(ctrl),
		IDGen:     &sequenceIDs{},
	})

	negative := -3
	_, err := uc.QueryHistory(context.Background(), usecase.QueryHistoryInput{AccountNumber: "x", Limit: &negative})
	if !errors.Is(err, domain.ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
}

func TestLedgerUseCase_HistoryReadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	entries := mocks.NewMockEntryStore(ctrl)
	balances := mocks.NewMockBalanceStore(ctrl)

	balances.EXPECT().GetOrZero(gomock.Any(), nil, "x").Return(decimal.NewFromInt(7), nil)
	entries.EXPECT().QueryByAccount(gomock.Any(), nil, "x", nil).Return(nil, errors.New("timeout"))

	uc := usecase.NewLedgerUseCase(usecase.LedgerConfig{
		TxManager: mocks.NewMockTransactionManager(ctrl),
		Entries:   entries,
		Balances:  balances,
		IDGen:     &sequenceIDs{},
	})

	_, err := uc.QueryHistory(context.Background(), usecase.QueryHistoryInput{AccountNumber: "x"})
	if !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("expected storage failure, got %v", err)
	}
}

func TestLedgerUseCase_ListEntriesAcrossAccounts(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newMemoryLedger(true)

	_, err := uc.Credit(ctx, "1001", dec(t, "10"))
	require.NoError(t, err)
	_, err = uc.Debit(ctx, "2002", dec(t, "4"))
	require.NoError(t, err)
	_, err = uc.Credit(ctx, "1001", dec(t, "1"))
	require.NoError(t, err)

	all, err := uc.ListEntries(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"1001", "2002", "1001"}, []string{all[0].AccountNumber, all[1].AccountNumber, all[2].AccountNumber})
	assert.True(t, all[0].Amount.Equal(dec(t, "1")))
	assert.Equal(t, domain.Debit, all[1].AccountingType)

	two := 2
	limited, err := uc.ListEntries(ctx, &two)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, all[0].TransactionID, limited[0].TransactionID)

	negative := -1
	_, err = uc.ListEntries(ctx, &negative)
	assert.ErrorIs(t, err, domain.ErrInvalidLimit)
}

func TestLedgerUseCase_ListEntriesEmpty(t *testing.T) {
	uc, _, _ := newMemoryLedger(true)

	all, err := uc.ListEntries(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestLedgerUseCase_ListEntriesReadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	entries := mocks.NewMockEntryStore(ctrl)
	entries.EXPECT().QueryAll(gomock.Any(), nil, nil).Return(nil, errors.New("timeout"))

	uc := usecase.NewLedgerUseCase(usecase.LedgerConfig{
		TxManager: mocks.NewMockTransactionManager(ctrl),
		Entries:   entries,
		Balances:  mocks.NewMockBalanceStore(ctrl),
		IDGen:     &sequenceIDs{},
	})

	_, err := uc.ListEntries(context.Background(), nil)
	if !errors.Is(err, domain.ErrStorageFailure) {
		t.Fatalf("expected storage failure, got %v", err)
	}
}
