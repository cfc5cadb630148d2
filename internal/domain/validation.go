package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Pagination constants
const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// ValidateMagnitude rejects negative entry amounts.
func ValidateMagnitude(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount.String())
	}
	return nil
}

// ValidateLimit checks an optional result-count limit.
func ValidateLimit(limit *int) error {
	if limit != nil && *limit < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, *limit)
	}
	return nil
}

// ParseLimit parses a raw limit value. An empty string means no limit.
func ParseLimit(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLimit, raw)
	}

	if err := ValidateLimit(&n); err != nil {
		return nil, err
	}

	return &n, nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
