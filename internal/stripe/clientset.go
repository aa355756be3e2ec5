package stripe

import (
	"github.com/xenking/stripeshop/internal/domain/checkout"
	"github.com/xenking/stripeshop/internal/domain/money"
)

// ClientSet resolves the Stripe client for a settlement currency. Every
// client carries its own credentials, so concurrent checkouts in different
// currencies never share mutable state.
type ClientSet struct {
	clients map[money.Currency]*Client
}

var _ checkout.GatewayResolver = (*ClientSet)(nil)

// NewClientSet builds one Client per currency with a configured secret key.
// Currencies with an empty key get no client and resolve to a credentials
// error.
func NewClientSet(secretKeys map[money.Currency]string, opts ...Option) *ClientSet {
	clients := make(map[money.Currency]*Client, len(secretKeys))
	for cur, key := range secretKeys {
		if key == "" {
			continue
		}
		clients[cur] = NewClient(key, opts...)
	}
	return &ClientSet{clients: clients}
}

// ForCurrency returns the gateway for the currency, or NoCredentialsError
// when that currency has no configured account.
func (s *ClientSet) ForCurrency(cur money.Currency) (checkout.Gateway, error) {
	client, ok := s.clients[cur]
	if !ok {
		return nil, &checkout.NoCredentialsError{Currency: cur}
	}
	return client, nil
}
