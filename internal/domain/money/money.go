// Package money defines monetary values in integer minor units and the
// fixed-rate currency conversion used at checkout time.
package money

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// Currency is an ISO 4217 currency code in lower case.
type Currency string

const (
	EUR Currency = "eur"
	USD Currency = "usd"
)

// ErrUnknownCurrency is returned when a currency code is not supported.
var ErrUnknownCurrency = errors.New("unknown currency")

// ParseCurrency normalizes and validates a currency code.
func ParseCurrency(s string) (Currency, error) {
	switch c := Currency(strings.ToLower(s)); c {
	case EUR, USD:
		return c, nil
	default:
		return "", errors.Wrapf(ErrUnknownCurrency, "%q", s)
	}
}

// Money is an immutable amount in the smallest unit of its currency
// (cents for EUR and USD). Amounts are never negative.
type Money struct {
	AmountMinor int64
	Currency    Currency
}

// New returns a Money value. Negative amounts are invalid.
func New(amountMinor int64, currency Currency) (Money, error) {
	if amountMinor < 0 {
		return Money{}, errors.Errorf("negative amount: %d", amountMinor)
	}
	return Money{AmountMinor: amountMinor, Currency: currency}, nil
}

func (m Money) String() string {
	return fmt.Sprintf("%s %d.%02d", strings.ToUpper(string(m.Currency)), m.AmountMinor/100, m.AmountMinor%100)
}
