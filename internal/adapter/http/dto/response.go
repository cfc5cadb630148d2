package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

// EntryResponse represents an entry in API responses.
type EntryResponse struct {
	AccountNumber      string          `json:"accountNumber"`
	Amount             decimal.Decimal `json:"amount"`
	AccountingType     string          `json:"accountingType"`
	AccountingTypeCode string          `json:"accountingTypeCode"`
	TransactionID      string          `json:"transactionId"`
	CreatedAt          string          `json:"createdAt"`
	Balance            decimal.Decimal `json:"balance"`
}

// EntryFromDomain converts domain entry to response.
func EntryFromDomain(e *domain.LedgerEntry) *EntryResponse {
	return &EntryResponse{
		AccountNumber:      e.AccountNumber,
		Amount:             e.Amount,
		AccountingType:     e.AccountingType.Label(),
		AccountingTypeCode: string(e.AccountingType.Code()),
		TransactionID:      e.TransactionID,
		CreatedAt:          e.CreatedAt.UTC().Format(time.RFC3339Nano),
		Balance:            e.Balance,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.LedgerEntry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// EntrySummaryResponse represents an entry of the ledger-wide listing, which
// carries no running balance.
type EntrySummaryResponse struct {
	AccountNumber      string          `json:"accountNumber"`
	Amount             decimal.Decimal `json:"amount"`
	AccountingType     string          `json:"accountingType"`
	AccountingTypeCode string          `json:"accountingTypeCode"`
	TransactionID      string          `json:"transactionId"`
	CreatedAt          string          `json:"createdAt"`
}

// EntrySummariesFromDomain converts domain entries to listing responses.
func EntrySummariesFromDomain(entries []*domain.LedgerEntry) []*EntrySummaryResponse {
	result := make([]*EntrySummaryResponse, len(entries))
	for i, e := range entries {
		result[i] = &EntrySummaryResponse{
			AccountNumber:      e.AccountNumber,
			Amount:             e.Amount,
			AccountingType:     e.AccountingType.Label(),
			AccountingTypeCode: string(e.AccountingType.Code()),
			TransactionID:      e.TransactionID,
			CreatedAt:          e.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	}
	return result
}

// BalanceResponse represents an account balance.
type BalanceResponse struct {
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
}

// ReconciliationResponse represents one account's reconciliation check.
type ReconciliationResponse struct {
	AccountNumber     string          `json:"accountNumber"`
	RecordedBalance   decimal.Decimal `json:"recordedBalance"`
	CalculatedBalance decimal.Decimal `json:"calculatedBalance"`
	Difference        decimal.Decimal `json:"difference"`
	IsReconciled      bool            `json:"isReconciled"`
	CheckedAt         string          `json:"checkedAt"`
}

// ReconciliationFromResult converts a reconciliation result to response.
func ReconciliationFromResult(r *usecase.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		AccountNumber:     r.AccountNumber,
		RecordedBalance:   r.RecordedBalance,
		CalculatedBalance: r.CalculatedBalance,
		Difference:        r.Difference,
		IsReconciled:      r.IsReconciled,
		CheckedAt:         r.CheckedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
