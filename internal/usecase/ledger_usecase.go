package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
)

// LedgerConfig holds dependencies for the LedgerUseCase.
type LedgerConfig struct {
	TxManager TransactionManager
	Entries   EntryStore
	Balances  BalanceStore
	IDGen     IDGenerator

	// Optional collaborators.
	Outbox  OutboxRepository
	Retrier Retrier
	Clock   Clock
	Metrics LedgerMetrics
	Logger  *zerolog.Logger

	// ConsistentHistory reads the balance and the entries of a history query
	// under the account lock, so no posting can interleave between the reads.
	ConsistentHistory bool
}

// LedgerUseCase posts entries and answers balance and history queries.
// It owns no state; entries and balances live in the injected stores.
type LedgerUseCase struct {
	txManager         TransactionManager
	entries           EntryStore
	balances          BalanceStore
	outbox            OutboxRepository
	idGen             IDGenerator
	retrier           Retrier
	clock             Clock
	metrics           LedgerMetrics
	logger            zerolog.Logger
	consistentHistory bool
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(cfg LedgerConfig) *LedgerUseCase {
	uc := &LedgerUseCase{
		txManager:         cfg.TxManager,
		entries:           cfg.Entries,
		balances:          cfg.Balances,
		outbox:            cfg.Outbox,
		idGen:             cfg.IDGen,
		retrier:           cfg.Retrier,
		clock:             cfg.Clock,
		metrics:           cfg.Metrics,
		logger:            zerolog.Nop(),
		consistentHistory: cfg.ConsistentHistory,
	}

	if cfg.Logger != nil {
		uc.logger = *cfg.Logger
	}
	if uc.retrier == nil {
		uc.retrier = noRetry{}
	}
	if uc.clock == nil {
		uc.clock = SystemClock{}
	}
	if uc.metrics == nil {
		uc.metrics = noMetrics{}
	}

	return uc
}

// AddEntryInput represents input for posting an entry.
type AddEntryInput struct {
	AccountNumber string
	Amount        decimal.Decimal
	TypeCode      domain.TypeCode
}

// QueryHistoryInput represents input for listing past entries.
type QueryHistoryInput struct {
	AccountNumber string
	Limit         *int
}

// Credit posts a credit of amount to the account.
func (uc *LedgerUseCase) Credit(ctx context.Context, accountNumber string, amount decimal.Decimal) (*domain.LedgerEntry, error) {
	return uc.AddEntry(ctx, AddEntryInput{AccountNumber: accountNumber, Amount: amount, TypeCode: domain.TypeCodeCredit})
}

// Debit posts a debit of amount to the account.
func (uc *LedgerUseCase) Debit(ctx context.Context, accountNumber string, amount decimal.Decimal) (*domain.LedgerEntry, error) {
	return uc.AddEntry(ctx, AddEntryInput{AccountNumber: accountNumber, Amount: amount, TypeCode: domain.TypeCodeDebit})
}

// AddEntry records a new entry and applies its signed amount to the balance.
// The returned entry carries the balance it produced.
func (uc *LedgerUseCase) AddEntry(ctx context.Context, input AddEntryInput) (*domain.LedgerEntry, error) {
	start := time.Now()

	accountingType, err := domain.ResolveAccountingType(input.TypeCode)
	if err != nil {
		uc.metrics.ObserveError("add_entry", err)
		return nil, err
	}

	if err := domain.ValidateMagnitude(input.Amount); err != nil {
		uc.metrics.ObserveError("add_entry", err)
		return nil, err
	}

	// Identity is fixed before any retry so a retried post reuses it.
	entry := domain.NewLedgerEntry(
		input.AccountNumber,
		input.Amount,
		accountingType,
		uc.idGen.Generate(),
		uc.clock.Now(),
	)

	var balance decimal.Decimal
	err = uc.retrier.Retry(ctx, func() error {
		var postErr error
		balance, postErr = uc.post(ctx, entry)
		return postErr
	})
	if err != nil {
		uc.metrics.ObserveError("add_entry", err)
		uc.logger.Error().
			Err(err).
			Str("account_number", entry.AccountNumber).
			Str("transaction_id", entry.TransactionID).
			Msg("failed to post entry")
		return nil, err
	}

	entry.Balance = balance
	uc.metrics.ObserveEntryPosted(accountingType.Code(), time.Since(start))

	uc.logger.Debug().
		Str("account_number", entry.AccountNumber).
		Str("transaction_id", entry.TransactionID).
		Str("type", accountingType.Label()).
		Str("amount", entry.Amount.String()).
		Str("balance", balance.String()).
		Msg("entry posted")

	return entry, nil
}

// post appends the entry and applies its delta inside one transaction that
// holds the account lock, so per account the append order is the order the
// deltas are applied in.
func (uc *LedgerUseCase) post(ctx context.Context, entry *domain.LedgerEntry) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return decimal.Zero, domain.NewStorageError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := uc.balances.LockAccount(ctx, tx, entry.AccountNumber); err != nil {
		return decimal.Zero, domain.NewStorageError("lock account", err)
	}

	// The balance must never reflect an entry that was not recorded.
	if err := uc.entries.Append(ctx, tx, entry); err != nil {
		return decimal.Zero, domain.NewStorageError("append entry", err)
	}

	balance, err := uc.balances.ApplyDelta(ctx, tx, entry.AccountNumber, entry.SignedAmount())
	if err != nil {
		return decimal.Zero, domain.NewStorageError("apply balance delta", err)
	}

	if uc.outbox != nil {
		posted := *entry
		posted.Balance = balance

		if err := uc.outbox.Create(ctx, tx, domain.NewEntryPostedEvent(uc.idGen.Generate(), &posted)); err != nil {
			return decimal.Zero, domain.NewStorageError("write outbox event", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, domain.NewStorageError("commit transaction", err)
	}

	return balance, nil
}

// QueryHistory lists an account's entries newest first, each carrying the
// balance as of its posting.
func (uc *LedgerUseCase) QueryHistory(ctx context.Context, input QueryHistoryInput) ([]*domain.LedgerEntry, error) {
	if err := domain.ValidateLimit(input.Limit); err != nil {
		uc.metrics.ObserveError("query_history", err)
		return nil, err
	}

	start := time.Now()

	var (
		entries []*domain.LedgerEntry
		err     error
	)
	if uc.consistentHistory {
		entries, err = uc.readHistoryLocked(ctx, input)
	} else {
		entries, err = uc.readHistory(ctx, nil, input)
	}
	if err != nil {
		uc.metrics.ObserveError("query_history", err)
		return nil, err
	}

	uc.metrics.ObserveHistoryQuery(len(entries), time.Since(start))

	return entries, nil
}

// ListEntries returns entries of every account, newest first. Entries carry
// no reconstructed balance.
func (uc *LedgerUseCase) ListEntries(ctx context.Context, limit *int) ([]*domain.LedgerEntry, error) {
	if err := domain.ValidateLimit(limit); err != nil {
		uc.metrics.ObserveError("list_entries", err)
		return nil, err
	}

	entries, err := uc.entries.QueryAll(ctx, nil, limit)
	if err != nil {
		err = domain.NewStorageError("list entries", err)
		uc.metrics.ObserveError("list_entries", err)
		return nil, err
	}

	return entries, nil
}

func (uc *LedgerUseCase) readHistoryLocked(ctx context.Context, input QueryHistoryInput) ([]*domain.LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, domain.NewStorageError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := uc.balances.LockAccount(ctx, tx, input.AccountNumber); err != nil {
		return nil, domain.NewStorageError("lock account", err)
	}

	entries, err := uc.readHistory(ctx, tx, input)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, domain.NewStorageError("commit transaction", err)
	}

	return entries, nil
}

func (uc *LedgerUseCase) readHistory(ctx context.Context, tx Transaction, input QueryHistoryInput) ([]*domain.LedgerEntry, error) {
	current, err := uc.balances.GetOrZero(ctx, tx, input.AccountNumber)
	if err != nil {
		return nil, domain.NewStorageError("get balance", err)
	}

	entries, err := uc.entries.QueryByAccount(ctx, tx, input.AccountNumber, input.Limit)
	if err != nil {
		return nil, domain.NewStorageError("query entries", err)
	}

	if entries == nil {
		entries = []*domain.LedgerEntry{}
	}

	domain.ReconstructBalances(entries, current)

	return entries, nil
}

// GetBalance returns the current balance of an account, zero if it has none.
func (uc *LedgerUseCase) GetBalance(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	balance, err := uc.balances.GetOrZero(ctx, nil, accountNumber)
	if err != nil {
		err = domain.NewStorageError("get balance", err)
		uc.metrics.ObserveError("get_balance", err)
		return decimal.Zero, err
	}

	return balance, nil
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type noRetry struct{}

func (noRetry) Retry(_ context.Context, operation func() error) error {
	return operation()
}

type noMetrics struct{}

func (noMetrics) ObserveEntryPosted(domain.TypeCode, time.Duration) {}
func (noMetrics) ObserveHistoryQuery(int, time.Duration)            {}
func (noMetrics) ObserveError(string, error)                        {}
