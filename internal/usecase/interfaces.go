package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
)

// EntryStore defines durable, append-only storage of ledger entries.
// A nil tx means the call runs outside any transaction.
type EntryStore interface {
	Append(ctx context.Context, tx Transaction, entry *domain.LedgerEntry) error
	// QueryByAccount returns entries newest first. A nil limit means no limit.
	QueryByAccount(ctx context.Context, tx Transaction, accountNumber string, limit *int) ([]*domain.LedgerEntry, error)
	// QueryAll returns entries of every account newest first.
	QueryAll(ctx context.Context, tx Transaction, limit *int) ([]*domain.LedgerEntry, error)
	SumByAccount(ctx context.Context, tx Transaction, accountNumber string) (decimal.Decimal, error)
}

// BalanceStore defines storage of one running balance per account.
type BalanceStore interface {
	// GetOrZero returns the current balance, or zero when no record exists.
	GetOrZero(ctx context.Context, tx Transaction, accountNumber string) (decimal.Decimal, error)
	// ApplyDelta atomically adds delta to the balance, creating the record if
	// absent, and returns the resulting balance.
	ApplyDelta(ctx context.Context, tx Transaction, accountNumber string, delta decimal.Decimal) (decimal.Decimal, error)
	// LockAccount serializes writers of one account until tx ends.
	LockAccount(ctx context.Context, tx Transaction, accountNumber string) error
	ListAccounts(ctx context.Context, limit, offset int) ([]*domain.BalanceRecord, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a storage transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation when the store reports a transient conflict.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// IdempotencyPendingMarker is stored under a key while its first request is
// in flight.
const IdempotencyPendingMarker = "processing"

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release removes a key so a failed request can be retried.
	Release(ctx context.Context, key string) error
}

// LedgerMetrics receives engine observations.
type LedgerMetrics interface {
	ObserveEntryPosted(typeCode domain.TypeCode, duration time.Duration)
	ObserveHistoryQuery(entries int, duration time.Duration)
	ObserveError(operation string, err error)
}
