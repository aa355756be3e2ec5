package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/stripeshop/internal/domain/catalog"
	"github.com/xenking/stripeshop/internal/domain/money"
)

func testItem(id int64, name string, amountMinor int64, cur money.Currency) catalog.Item {
	return catalog.Item{
		ID:    id,
		Name:  name,
		Price: money.Money{AmountMinor: amountMinor, Currency: cur},
	}
}

func TestAddItem_MergesSameItem(t *testing.T) {
	o := &Order{Currency: money.EUR}
	book := testItem(1, "Book", 1999, money.EUR)

	require.NoError(t, o.AddItem(book, 2))
	require.NoError(t, o.AddItem(book, 3))

	require.Len(t, o.Lines, 1)
	assert.Equal(t, 5, o.Lines[0].Quantity)
}

func TestAddItem_DistinctItems(t *testing.T) {
	o := &Order{Currency: money.EUR}

	require.NoError(t, o.AddItem(testItem(1, "Book", 1999, money.EUR), 2))
	require.NoError(t, o.AddItem(testItem(2, "Pen", 499, money.EUR), 3))

	require.Len(t, o.Lines, 2)
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	o := &Order{Currency: money.EUR}

	err := o.AddItem(testItem(1, "Book", 1999, money.EUR), 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Empty(t, o.Lines)
}

func TestTotalMinor(t *testing.T) {
	o := &Order{Currency: money.EUR}
	require.NoError(t, o.AddItem(testItem(1, "Book", 1999, money.EUR), 2))
	require.NoError(t, o.AddItem(testItem(2, "Pen", 499, money.EUR), 3))

	total, err := o.TotalMinor()
	require.NoError(t, err)
	assert.Equal(t, int64(5495), total)
}

func TestTotalMinor_MixedCurrencies(t *testing.T) {
	o := &Order{Currency: money.USD}
	require.NoError(t, o.AddItem(testItem(1, "Mug", 1299, money.EUR), 1))

	_, err := o.TotalMinor()
	require.ErrorIs(t, err, ErrMixedCurrencies)
}

func TestTotalMinor_Empty(t *testing.T) {
	o := &Order{Currency: money.EUR}

	total, err := o.TotalMinor()
	require.NoError(t, err)
	assert.Zero(t, total)
}
