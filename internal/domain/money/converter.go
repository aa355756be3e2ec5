package money

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Pair is a directed currency pair. Rates for (eur, usd) and (usd, eur) are
// independent table entries and are not derived from each other.
type Pair struct {
	From Currency
	To   Currency
}

// MissingRateError indicates no rate is configured for a required pair.
type MissingRateError struct {
	From Currency
	To   Currency
}

func (e *MissingRateError) Error() string {
	return "no FX rate configured for " + string(e.From) + "->" + string(e.To)
}

var hundred = decimal.NewFromInt(100)

// Converter converts minor-unit amounts between currencies using a fixed
// rate table. The table is read-only after construction, so a Converter is
// safe for concurrent use.
type Converter struct {
	rates map[Pair]decimal.Decimal
}

// NewConverter builds a Converter from a directed rate table.
func NewConverter(rates map[Pair]decimal.Decimal) *Converter {
	table := make(map[Pair]decimal.Decimal, len(rates))
	for p, r := range rates {
		table[p] = r
	}
	return &Converter{rates: table}
}

// Convert converts amountMinor from one currency to another.
//
// Identity conversions return the amount untouched with no rounding. Cross
// currency conversions treat the amount as exact major units (amount/100),
// multiply by the configured rate in decimal arithmetic, and round the
// resulting minor units half away from zero, matching conventional
// commercial rounding. Results are reproducible across platforms because no
// binary floating point is involved.
func (c *Converter) Convert(amountMinor int64, from, to Currency) (int64, error) {
	if amountMinor < 0 {
		return 0, errors.Errorf("negative amount: %d", amountMinor)
	}
	if from == to {
		return amountMinor, nil
	}

	rate, ok := c.rates[Pair{From: from, To: to}]
	if !ok {
		return 0, &MissingRateError{From: from, To: to}
	}

	major := decimal.New(amountMinor, -2)
	converted := major.Mul(rate).Mul(hundred)

	// decimal.Round rounds half away from zero.
	return converted.Round(0).IntPart(), nil
}

// ConvertMoney converts a Money value into the target currency.
func (c *Converter) ConvertMoney(m Money, to Currency) (Money, error) {
	amount, err := c.Convert(m.AmountMinor, m.Currency, to)
	if err != nil {
		return Money{}, err
	}
	return Money{AmountMinor: amount, Currency: to}, nil
}
