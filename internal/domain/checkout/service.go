package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/stripeshop/internal/domain/catalog"
	"github.com/xenking/stripeshop/internal/domain/order"
)

// Service is the checkout orchestration entry point. It exposes the
// single-item fast path and the full order path.
type Service struct {
	items    catalog.Repository
	orders   order.Repository
	builder  *Builder
	gateways GatewayResolver
}

// NewService creates a checkout Service.
func NewService(items catalog.Repository, orders order.Repository, builder *Builder, gateways GatewayResolver) *Service {
	return &Service{
		items:    items,
		orders:   orders,
		builder:  builder,
		gateways: gateways,
	}
}

// BuyItem creates a checkout session for a single item in the item's own
// currency. It bypasses the order aggregate entirely: no discounts, no
// taxes, no session linkage is persisted.
func (s *Service) BuyItem(ctx context.Context, itemID int64) (*Session, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	gw, err := s.gateways.ForCurrency(item.Price.Currency)
	if err != nil {
		return nil, err
	}

	session, err := gw.CreateSession(ctx, &Request{
		Currency: item.Price.Currency,
		LineItems: []LineItem{{
			Currency:        item.Price.Currency,
			Name:            item.Name,
			Description:     truncate(item.Description, maxDescriptionLen),
			UnitAmountMinor: item.Price.AmountMinor,
			Quantity:        1,
		}},
		SuccessURL: s.builder.successURL,
		CancelURL:  s.builder.cancelURL,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create session for item %d", itemID)
	}
	return session, nil
}

// BuyOrder builds the full checkout request for the order, creates the
// provider session, and persists the session id on the order. A repeated
// submission overwrites the stored id; the superseded session is left alive
// at the provider and simply becomes unreferenced.
func (s *Service) BuyOrder(ctx context.Context, orderID int64) (*Session, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	req, err := s.builder.Build(ctx, o)
	if err != nil {
		return nil, err
	}

	gw, err := s.gateways.ForCurrency(o.Currency)
	if err != nil {
		return nil, err
	}

	session, err := gw.CreateSession(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "create session for order %d", orderID)
	}

	if err := s.orders.SetCheckoutSession(ctx, o.ID, session.ID); err != nil {
		return nil, errors.Wrap(err, "persist checkout session")
	}

	zctx.From(ctx).Info("Checkout session created",
		zap.Int64("order_id", o.ID),
		zap.String("session_id", session.ID),
		zap.String("currency", string(o.Currency)),
	)
	return session, nil
}
