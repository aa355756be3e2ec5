package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConverter(t *testing.T, rates map[Pair]string) *Converter {
	t.Helper()
	table := make(map[Pair]decimal.Decimal, len(rates))
	for p, r := range rates {
		table[p] = decimal.RequireFromString(r)
	}
	return NewConverter(table)
}

func TestConvert_Identity(t *testing.T) {
	c := NewConverter(nil)

	for _, amount := range []int64{0, 1, 99, 1050, 999999} {
		got, err := c.Convert(amount, EUR, EUR)
		require.NoError(t, err)
		assert.Equal(t, amount, got)
	}
}

func TestConvert_FixedRate(t *testing.T) {
	c := newTestConverter(t, map[Pair]string{
		{From: EUR, To: USD}: "1.1",
		{From: USD, To: EUR}: "0.9",
	})

	got, err := c.Convert(1050, EUR, USD)
	require.NoError(t, err)
	assert.Equal(t, int64(1155), got)

	got, err = c.Convert(1299, EUR, USD)
	require.NoError(t, err)
	assert.Equal(t, int64(1429), got)

	got, err = c.Convert(1000, USD, EUR)
	require.NoError(t, err)
	assert.Equal(t, int64(900), got)
}

func TestConvert_RoundsHalfAwayFromZero(t *testing.T) {
	// 1.005 * 100 minor units = 100.5 cents, must round up to 101.
	c := newTestConverter(t, map[Pair]string{
		{From: EUR, To: USD}: "1.005",
	})

	got, err := c.Convert(100, EUR, USD)
	require.NoError(t, err)
	assert.Equal(t, int64(101), got)
}

func TestConvert_RatesAreDirected(t *testing.T) {
	c := newTestConverter(t, map[Pair]string{
		{From: EUR, To: USD}: "1.1",
	})

	_, err := c.Convert(100, USD, EUR)

	var mrErr *MissingRateError
	require.ErrorAs(t, err, &mrErr)
	assert.Equal(t, USD, mrErr.From)
	assert.Equal(t, EUR, mrErr.To)
}

func TestConvert_MissingRate(t *testing.T) {
	c := NewConverter(nil)

	_, err := c.Convert(100, EUR, USD)

	var mrErr *MissingRateError
	require.ErrorAs(t, err, &mrErr)
}

func TestConvert_NegativeAmount(t *testing.T) {
	c := NewConverter(nil)

	_, err := c.Convert(-1, EUR, EUR)
	require.Error(t, err)
}

func TestConvertMoney(t *testing.T) {
	c := newTestConverter(t, map[Pair]string{
		{From: USD, To: EUR}: "0.9",
	})

	got, err := c.ConvertMoney(Money{AmountMinor: 1299, Currency: USD}, EUR)
	require.NoError(t, err)
	assert.Equal(t, Money{AmountMinor: 1169, Currency: EUR}, got)
}

func TestParseCurrency(t *testing.T) {
	cur, err := ParseCurrency("EUR")
	require.NoError(t, err)
	assert.Equal(t, EUR, cur)

	cur, err = ParseCurrency("usd")
	require.NoError(t, err)
	assert.Equal(t, USD, cur)

	_, err = ParseCurrency("xyz")
	require.ErrorIs(t, err, ErrUnknownCurrency)
}
