package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceRecord is the running balance projection of one account.
type BalanceRecord struct {
	AccountNumber string
	Balance       decimal.Decimal
	UpdatedAt     time.Time
}
