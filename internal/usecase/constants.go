package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a storage transaction
	// This prevents long-running transactions from holding account locks
	DefaultTransactionTimeout = 10 * time.Second

	// reconciliationPageSize is the number of balance records fetched per page
	reconciliationPageSize = 500
)
