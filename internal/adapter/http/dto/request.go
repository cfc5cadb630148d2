package dto

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgerbook/internal/domain"
	"github.com/iho/ledgerbook/internal/usecase"
)

// ErrMissingAccountNumber is returned for a posting without an account.
var ErrMissingAccountNumber = errors.New("accountNumber is required")

// ErrMissingAmount is returned for a posting without an amount.
var ErrMissingAmount = errors.New("amount is required")

// CreditRequest represents a request to credit an account.
type CreditRequest struct {
	AccountNumber string           `json:"accountNumber"`
	CreditAmount  *decimal.Decimal `json:"creditAmount"`
}

// ToUseCaseInput converts to use case input.
func (r *CreditRequest) ToUseCaseInput() (usecase.AddEntryInput, error) {
	return entryInput(r.AccountNumber, r.CreditAmount, domain.TypeCodeCredit)
}

// DebitRequest represents a request to debit an account.
type DebitRequest struct {
	AccountNumber string           `json:"accountNumber"`
	DebitAmount   *decimal.Decimal `json:"debitAmount"`
}

// ToUseCaseInput converts to use case input.
func (r *DebitRequest) ToUseCaseInput() (usecase.AddEntryInput, error) {
	return entryInput(r.AccountNumber, r.DebitAmount, domain.TypeCodeDebit)
}

func entryInput(accountNumber string, amount *decimal.Decimal, code domain.TypeCode) (usecase.AddEntryInput, error) {
	if strings.TrimSpace(accountNumber) == "" {
		return usecase.AddEntryInput{}, ErrMissingAccountNumber
	}
	if amount == nil {
		return usecase.AddEntryInput{}, ErrMissingAmount
	}

	return usecase.AddEntryInput{
		AccountNumber: accountNumber,
		Amount:        *amount,
		TypeCode:      code,
	}, nil
}
