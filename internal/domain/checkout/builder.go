package checkout

import (
	"context"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/stripeshop/internal/domain/money"
	"github.com/xenking/stripeshop/internal/domain/order"
)

// maxDescriptionLen caps the item description forwarded to the provider.
const maxDescriptionLen = 500

// Builder assembles checkout requests from orders. Every monetary amount in
// the result is converted into the order's settlement currency; tax rates
// and coupons are registered with the provider as part of the build.
type Builder struct {
	gateways   GatewayResolver
	converter  *money.Converter
	successURL string
	cancelURL  string
}

// NewBuilder creates a Builder with the given gateway resolver, converter,
// and redirect URLs.
func NewBuilder(gateways GatewayResolver, converter *money.Converter, successURL, cancelURL string) *Builder {
	return &Builder{
		gateways:   gateways,
		converter:  converter,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// Build assembles the provider request for the order. It registers one tax
// rate per attached tax and one coupon per applicable discount, attaches
// every tax-rate reference to every line, and converts any line or fixed
// discount denominated in another currency into the order currency.
//
// The first failure abandons the whole build: the caller gets no request and
// the order is untouched. Provider objects already registered by an aborted
// build stay orphaned at the provider and are not reused on retry.
func (b *Builder) Build(ctx context.Context, o *order.Order) (*Request, error) {
	gw, err := b.gateways.ForCurrency(o.Currency)
	if err != nil {
		return nil, err
	}

	// Convert everything first: conversion is pure and any missing rate
	// should fail the build before provider objects are created.
	unitAmounts := make([]int64, len(o.Lines))
	for i, line := range o.Lines {
		amount, err := b.converter.Convert(line.Item.Price.AmountMinor, line.Item.Price.Currency, o.Currency)
		if err != nil {
			return nil, errors.Wrapf(err, "convert item %d", line.Item.ID)
		}
		unitAmounts[i] = amount
	}

	fixedAmounts := make([]int64, len(o.Discounts))
	elided := make([]bool, len(o.Discounts))
	for i, d := range o.Discounts {
		switch d.Type {
		case order.DiscountPercent:
		case order.DiscountFixed:
			amount, err := b.converter.Convert(d.AmountOff.AmountMinor, d.AmountOff.Currency, o.Currency)
			if err != nil {
				return nil, errors.Wrapf(err, "convert discount %q", d.Name)
			}
			fixedAmounts[i] = amount
			if amount <= 0 {
				// A fixed discount that converts to nothing is dropped, not
				// an error. Kept from the original behaviour; the warn makes
				// the silent no-op at least visible.
				elided[i] = true
				zctx.From(ctx).Warn("Fixed discount converts to zero, omitting",
					zap.String("discount", d.Name),
					zap.String("currency", string(o.Currency)),
				)
			}
		default:
			return nil, errors.Errorf("unsupported discount type: %q", d.Type)
		}
	}

	// Tax rates and coupons are independent provider objects; register them
	// concurrently, but all of them must exist before session creation.
	// Indexed result slices keep reference order deterministic. Discounts
	// were validated above, so nothing fails between here and Wait.
	taxRefs := make([]string, len(o.Taxes))
	couponRefs := make([]string, len(o.Discounts))

	g, gctx := errgroup.WithContext(ctx)
	for i, tax := range o.Taxes {
		g.Go(func() error {
			ref, err := gw.RegisterTaxRate(gctx, tax.Name, tax.Percentage, tax.Inclusive)
			if err != nil {
				return errors.Wrapf(err, "register tax rate %q", tax.Name)
			}
			taxRefs[i] = ref
			return nil
		})
	}
	for i, d := range o.Discounts {
		if elided[i] {
			continue
		}
		switch d.Type {
		case order.DiscountPercent:
			g.Go(func() error {
				ref, err := gw.RegisterPercentCoupon(gctx, d.Name, d.PercentOff)
				if err != nil {
					return errors.Wrapf(err, "register coupon %q", d.Name)
				}
				couponRefs[i] = ref
				return nil
			})
		case order.DiscountFixed:
			g.Go(func() error {
				ref, err := gw.RegisterFixedCoupon(gctx, d.Name, fixedAmounts[i], o.Currency)
				if err != nil {
					return errors.Wrapf(err, "register coupon %q", d.Name)
				}
				couponRefs[i] = ref
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lines := make([]LineItem, len(o.Lines))
	for i, line := range o.Lines {
		lines[i] = LineItem{
			Currency:        o.Currency,
			Name:            line.Item.Name,
			Description:     truncate(line.Item.Description, maxDescriptionLen),
			UnitAmountMinor: unitAmounts[i],
			Quantity:        line.Quantity,
			TaxRateRefs:     taxRefs,
		}
	}

	coupons := make([]string, 0, len(o.Discounts))
	for i := range o.Discounts {
		if !elided[i] {
			coupons = append(coupons, couponRefs[i])
		}
	}

	return &Request{
		Currency:   o.Currency,
		LineItems:  lines,
		CouponRefs: coupons,
		SuccessURL: b.successURL,
		CancelURL:  b.cancelURL,
	}, nil
}

// truncate cuts s to at most n runes, never splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
