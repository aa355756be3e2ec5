// Package checkout assembles payment-provider checkout requests from orders
// and drives session creation. It owns the only mutations the payment flow
// makes to an order: writing the checkout session id here, and the paid flag
// in the settlement package.
package checkout

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/stripeshop/internal/domain/money"
)

// LineItem is one provider line descriptor, always denominated in the
// request currency.
type LineItem struct {
	Currency        money.Currency
	Name            string
	Description     string
	UnitAmountMinor int64
	Quantity        int
	TaxRateRefs     []string
}

// Request is a fully assembled checkout request, ready for session creation.
// Tax rates and coupons referenced here are already registered with the
// provider.
type Request struct {
	Currency   money.Currency
	LineItems  []LineItem
	CouponRefs []string
	SuccessURL string
	CancelURL  string
}

// Session is a provider-issued checkout session. ID is opaque; URL is where
// the customer completes payment.
type Session struct {
	ID  string
	URL string
}

// Gateway is the narrow payment-provider contract the checkout flow depends
// on. Implementations carry their own credentials, so distinct currencies
// can use distinct provider accounts concurrently.
type Gateway interface {
	CreateSession(ctx context.Context, req *Request) (*Session, error)
	RegisterTaxRate(ctx context.Context, name string, percentage decimal.Decimal, inclusive bool) (string, error)
	RegisterPercentCoupon(ctx context.Context, name string, percentOff decimal.Decimal) (string, error)
	RegisterFixedCoupon(ctx context.Context, name string, amountMinor int64, currency money.Currency) (string, error)
}

// NoCredentialsError indicates no provider credentials are configured for a
// settlement currency.
type NoCredentialsError struct {
	Currency money.Currency
}

func (e *NoCredentialsError) Error() string {
	return "provider credentials not configured for currency " + string(e.Currency)
}

// GatewayResolver yields the gateway configured for a currency, failing with
// NoCredentialsError when that currency has none.
type GatewayResolver interface {
	ForCurrency(currency money.Currency) (Gateway, error)
}
