package domain

import "fmt"

// TypeCode is the persisted single-character identifier of an accounting type.
type TypeCode string

const (
	TypeCodeCredit TypeCode = "C"
	TypeCodeDebit  TypeCode = "D"
)

type accountingKind uint8

const (
	kindInvalid accountingKind = iota
	kindCredit
	kindDebit
)

// AccountingType is the sign convention applied to an entry amount.
// Only Credit and Debit exist; the zero value is invalid.
type AccountingType struct {
	kind accountingKind
}

var (
	Credit = AccountingType{kind: kindCredit}
	Debit  = AccountingType{kind: kindDebit}
)

// Sign returns +1 for credits and -1 for debits.
func (t AccountingType) Sign() int {
	switch t.kind {
	case kindCredit:
		return 1
	case kindDebit:
		return -1
	default:
		panic(fmt.Sprintf("domain: sign of invalid accounting type %d", t.kind))
	}
}

// Code returns the canonical code used for persistence.
func (t AccountingType) Code() TypeCode {
	switch t.kind {
	case kindCredit:
		return TypeCodeCredit
	case kindDebit:
		return TypeCodeDebit
	default:
		return ""
	}
}

// Label returns the human readable name.
func (t AccountingType) Label() string {
	switch t.kind {
	case kindCredit:
		return "Credit"
	case kindDebit:
		return "Debit"
	default:
		return "Invalid"
	}
}

func (t AccountingType) String() string {
	return t.Label()
}

// IsValid reports whether t is one of Credit or Debit.
func (t AccountingType) IsValid() bool {
	return t.kind == kindCredit || t.kind == kindDebit
}

// ParseTypeCode resolves a persisted code to its accounting type.
func ParseTypeCode(code string) (AccountingType, error) {
	switch TypeCode(code) {
	case TypeCodeCredit:
		return Credit, nil
	case TypeCodeDebit:
		return Debit, nil
	default:
		return AccountingType{}, fmt.Errorf("%w: %q", ErrUnknownTypeCode, code)
	}
}

// ResolveAccountingType accepts an AccountingType, a TypeCode or a code string.
func ResolveAccountingType(v any) (AccountingType, error) {
	switch t := v.(type) {
	case AccountingType:
		if !t.IsValid() {
			return AccountingType{}, ErrUnknownTypeCode
		}
		return t, nil
	case TypeCode:
		return ParseTypeCode(string(t))
	case string:
		return ParseTypeCode(t)
	default:
		return AccountingType{}, fmt.Errorf("%w: %v", ErrUnknownTypeCode, v)
	}
}
