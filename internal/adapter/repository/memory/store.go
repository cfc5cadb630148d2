package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

// ErrTxClosed is returned when a finished transaction is committed again.
var ErrTxClosed = errors.New("memory: transaction already closed")

// Store is an in-process implementation of usecase.EntryStore,
// usecase.BalanceStore and usecase.TransactionManager.
// Writes made inside a Tx become visible atomically on Commit.
type Store struct {
	mu       sync.RWMutex
	entries  map[string][]domain.LedgerEntry // per account, in insertion order
	journal  []domain.LedgerEntry            // every account, in insertion order
	balances map[string]*domain.BalanceRecord

	events []*domain.OutboxEvent

	locksMu sync.Mutex
	locks   map[string]chan struct{}

	now func() time.Time
}

var (
	_ usecase.EntryStore         = (*Store)(nil)
	_ usecase.BalanceStore       = (*Store)(nil)
	_ usecase.TransactionManager = (*Store)(nil)
)

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		entries:  make(map[string][]domain.LedgerEntry),
		balances: make(map[string]*domain.BalanceRecord),
		locks:    make(map[string]chan struct{}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Tx buffers writes until Commit and holds the account locks it acquired.
type Tx struct {
	store   *Store
	entries []domain.LedgerEntry
	deltas  map[string]decimal.Decimal
	events  []*domain.OutboxEvent
	held    []string
	done    bool
}

// Begin starts a new transaction.
func (s *Store) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Tx{store: s, deltas: make(map[string]decimal.Decimal)}, nil
}

// Commit publishes the buffered writes and releases held locks.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxClosed
	}
	t.done = true
	defer t.release()

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range t.entries {
		s.appendLocked(e)
	}

	for account, delta := range t.deltas {
		s.addLocked(account, delta)
	}

	s.events = append(s.events, t.events...)

	return nil
}

// Rollback discards buffered writes. It is a no-op after Commit.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.release()

	return nil
}

func (t *Tx) release() {
	for _, account := range t.held {
		<-t.store.lockFor(account)
	}
	t.held = nil
}

func (t *Tx) holds(account string) bool {
	for _, a := range t.held {
		if a == account {
			return true
		}
	}
	return false
}

// Append records an entry. Without a transaction it is visible immediately.
func (s *Store) Append(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t, err := s.asTx(tx)
	if err != nil {
		return err
	}

	stored := *entry
	stored.Balance = decimal.Zero

	if t != nil {
		t.entries = append(t.entries, stored)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(stored)

	return nil
}

func (s *Store) appendLocked(e domain.LedgerEntry) {
	s.entries[e.AccountNumber] = append(s.entries[e.AccountNumber], e)
	s.journal = append(s.journal, e)
}

// QueryByAccount returns copies of the account's entries, newest first.
func (s *Store) QueryByAccount(ctx context.Context, tx usecase.Transaction, accountNumber string, limit *int) ([]*domain.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t, err := s.asTx(tx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	all := append([]domain.LedgerEntry(nil), s.entries[accountNumber]...)
	s.mu.RUnlock()

	if t != nil {
		for _, e := range t.entries {
			if e.AccountNumber == accountNumber {
				all = append(all, e)
			}
		}
	}

	return newestFirst(all, limit), nil
}

// QueryAll returns copies of every account's entries, newest first.
func (s *Store) QueryAll(ctx context.Context, tx usecase.Transaction, limit *int) ([]*domain.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t, err := s.asTx(tx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	all := append([]domain.LedgerEntry(nil), s.journal...)
	s.mu.RUnlock()

	if t != nil {
		all = append(all, t.entries...)
	}

	return newestFirst(all, limit), nil
}

func newestFirst(all []domain.LedgerEntry, limit *int) []*domain.LedgerEntry {
	n := len(all)
	if limit != nil && *limit < n {
		n = *limit
	}

	result := make([]*domain.LedgerEntry, 0, n)
	for i := len(all) - 1; i >= 0 && len(result) < n; i-- {
		e := all[i]
		result = append(result, &e)
	}

	return result
}

// SumByAccount returns the signed sum of every entry of the account.
func (s *Store) SumByAccount(ctx context.Context, tx usecase.Transaction, accountNumber string) (decimal.Decimal, error) {
	entries, err := s.QueryByAccount(ctx, tx, accountNumber, nil)
	if err != nil {
		return decimal.Zero, err
	}

	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.SignedAmount())
	}

	return sum, nil
}

// GetOrZero returns the current balance including the transaction's own
// pending delta. Reading never creates a record.
func (s *Store) GetOrZero(ctx context.Context, tx usecase.Transaction, accountNumber string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	t, err := s.asTx(tx)
	if err != nil {
		return decimal.Zero, err
	}

	balance := s.committedBalance(accountNumber)
	if t != nil {
		balance = balance.Add(t.deltas[accountNumber])
	}

	return balance, nil
}

// ApplyDelta adds delta to the account balance. Inside a transaction the
// delta is applied on Commit; deltas are always added, never overwritten,
// so concurrent commits cannot lose an update.
func (s *Store) ApplyDelta(ctx context.Context, tx usecase.Transaction, accountNumber string, delta decimal.Decimal) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	t, err := s.asTx(tx)
	if err != nil {
		return decimal.Zero, err
	}

	if t == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.addLocked(accountNumber, delta), nil
	}

	pending := t.deltas[accountNumber].Add(delta)
	t.deltas[accountNumber] = pending

	return s.committedBalance(accountNumber).Add(pending), nil
}

// LockAccount blocks until the transaction owns the account's lock or ctx ends.
func (s *Store) LockAccount(ctx context.Context, tx usecase.Transaction, accountNumber string) error {
	t, err := s.asTx(tx)
	if err != nil {
		return err
	}
	if t == nil {
		return errors.New("memory: LockAccount requires a transaction")
	}
	if t.holds(accountNumber) {
		return nil
	}

	select {
	case s.lockFor(accountNumber) <- struct{}{}:
		t.held = append(t.held, accountNumber)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListAccounts returns balance records ordered by account number.
func (s *Store) ListAccounts(ctx context.Context, limit, offset int) ([]*domain.BalanceRecord, error) {
	limit, offset, _ = domain.ValidatePagination(limit, offset)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]string, 0, len(s.balances))
	for account := range s.balances {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)

	if offset >= len(accounts) {
		return []*domain.BalanceRecord{}, nil
	}
	accounts = accounts[offset:]
	if limit < len(accounts) {
		accounts = accounts[:limit]
	}

	records := make([]*domain.BalanceRecord, 0, len(accounts))
	for _, account := range accounts {
		record := *s.balances[account]
		records = append(records, &record)
	}

	return records, nil
}

func (s *Store) committedBalance(accountNumber string) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if record, ok := s.balances[accountNumber]; ok {
		return record.Balance
	}
	return decimal.Zero
}

func (s *Store) addLocked(accountNumber string, delta decimal.Decimal) decimal.Decimal {
	record, ok := s.balances[accountNumber]
	if !ok {
		record = &domain.BalanceRecord{AccountNumber: accountNumber, Balance: decimal.Zero}
		s.balances[accountNumber] = record
	}

	record.Balance = record.Balance.Add(delta)
	record.UpdatedAt = s.now()

	return record.Balance
}

func (s *Store) lockFor(accountNumber string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	ch, ok := s.locks[accountNumber]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[accountNumber] = ch
	}
	return ch
}

func (s *Store) asTx(tx usecase.Transaction) (*Tx, error) {
	if tx == nil {
		return nil, nil
	}

	t, ok := tx.(*Tx)
	if !ok || t.store != s {
		return nil, errors.New("memory: foreign transaction")
	}
	if t.done {
		return nil, ErrTxClosed
	}

	return t, nil
}
