// Package order defines the order aggregate: line items merged per catalog
// item, attached discounts and taxes, the settlement currency, and the
// payment state written back by checkout and settlement.
package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/stripeshop/internal/domain/catalog"
	"github.com/xenking/stripeshop/internal/domain/money"
)

var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidQuantity is returned when a line quantity is not positive.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	// ErrMixedCurrencies is returned by TotalMinor when line items are not
	// all denominated in the order currency. Cross-currency totals are the
	// checkout builder's job.
	ErrMixedCurrencies = errors.New("order lines span multiple currencies")
)

// DiscountType tags the discount variant.
type DiscountType string

const (
	// DiscountPercent takes a percentage off the whole order.
	DiscountPercent DiscountType = "percent"
	// DiscountFixed takes a fixed monetary amount off the whole order.
	DiscountFixed DiscountType = "fixed"
)

// Discount is attached to orders by back-office tooling and applied during
// checkout. Exactly one of PercentOff or AmountOff is meaningful, selected
// by Type.
type Discount struct {
	ID         int64
	Name       string
	Type       DiscountType
	PercentOff decimal.Decimal
	AmountOff  money.Money
}

// Tax is a named percentage applied to every line at checkout. Inclusive
// taxes are already contained in the unit amounts.
type Tax struct {
	ID         int64
	Name       string
	Percentage decimal.Decimal
	Inclusive  bool
}

// Line is one order position. An order holds at most one line per item;
// adding the same item again increases the quantity.
type Line struct {
	Item     catalog.Item
	Quantity int
}

// Order is the aggregate driven through checkout and settlement. Paid
// transitions false to true exactly once and never reverts.
// CheckoutSessionID holds the provider session from the most recent
// submission; a resubmission overwrites it and the prior session becomes
// unreferenced.
type Order struct {
	ID                int64
	Currency          money.Currency
	Lines             []Line
	Discounts         []Discount
	Taxes             []Tax
	Paid              bool
	CheckoutSessionID string
}

// AddItem merges the item into the order's lines: an existing line for the
// same item has its quantity increased, otherwise a new line is appended.
func (o *Order) AddItem(item catalog.Item, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range o.Lines {
		if o.Lines[i].Item.ID == item.ID {
			o.Lines[i].Quantity += quantity
			return nil
		}
	}
	o.Lines = append(o.Lines, Line{Item: item, Quantity: quantity})
	return nil
}

// TotalMinor sums quantity * unit price over all lines. It only supports
// same-currency orders: any line priced in another currency fails with
// ErrMixedCurrencies.
func (o *Order) TotalMinor() (int64, error) {
	var total int64
	for _, l := range o.Lines {
		if l.Item.Price.Currency != o.Currency {
			return 0, errors.Wrapf(ErrMixedCurrencies, "item %d priced in %s, order in %s",
				l.Item.ID, l.Item.Price.Currency, o.Currency)
		}
		total += int64(l.Quantity) * l.Item.Price.AmountMinor
	}
	return total, nil
}

// Repository defines persistence operations for orders. The checkout and
// settlement flows only ever write CheckoutSessionID and Paid; everything
// else is order management.
type Repository interface {
	Create(ctx context.Context, currency money.Currency) (*Order, error)
	Get(ctx context.Context, id int64) (*Order, error)
	// AddLine merges (orderID, itemID) with the given quantity: inserts a
	// new line or increments the existing one in a single atomic write.
	AddLine(ctx context.Context, orderID, itemID int64, quantity int) error
	SetCurrency(ctx context.Context, orderID int64, currency money.Currency) error
	AttachDiscount(ctx context.Context, orderID, discountID int64) error
	AttachTax(ctx context.Context, orderID, taxID int64) error
	// SetCheckoutSession records the provider session for the order,
	// overwriting any previous one. Last writer wins.
	SetCheckoutSession(ctx context.Context, orderID int64, sessionID string) error
	// MarkPaidBySession flips Paid for the order holding sessionID, but only
	// if it is still unpaid. It reports whether a row transitioned, so a
	// replay or an unknown session reads as false with a nil error.
	MarkPaidBySession(ctx context.Context, sessionID string) (bool, error)
}
