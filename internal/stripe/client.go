// Package stripe implements the checkout gateway against the Stripe REST
// API: checkout sessions, tax rates, coupons, and webhook verification.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/stripeshop/internal/domain/checkout"
	"github.com/xenking/stripeshop/internal/domain/money"
)

const (
	defaultBaseURL = "https://api.stripe.com"
	defaultTimeout = 15 * time.Second
	retryMax       = 2
)

// APIError is a rejection from the Stripe API.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stripe: %d %s (%s): %s", e.StatusCode, e.Type, e.Code, e.Message)
}

// Client talks to one Stripe account, identified by its secret key. Keys are
// per-currency, so a Client is bound to a single settlement currency and can
// be used concurrently with clients for other currencies.
type Client struct {
	secretKey string
	baseURL   string
	http      *retryablehttp.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout bounds each provider call, including retries of one attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.HTTPClient.Timeout = d }
}

// NewClient creates a Client for the given secret key. Calls are retried on
// transport errors and 5xx responses, traced via otelhttp, and bounded by a
// per-attempt timeout.
func NewClient(secretKey string, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.Logger = nil
	rc.HTTPClient.Timeout = defaultTimeout
	rc.HTTPClient.Transport = otelhttp.NewTransport(http.DefaultTransport)

	c := &Client{
		secretKey: secretKey,
		baseURL:   defaultBaseURL,
		http:      rc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ checkout.Gateway = (*Client)(nil)

// CreateSession creates a hosted checkout session and returns its id and
// payment URL.
func (c *Client) CreateSession(ctx context.Context, req *checkout.Request) (*checkout.Session, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)

	for i, li := range req.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", string(li.Currency))
		form.Set(prefix+"[price_data][product_data][name]", li.Name)
		if li.Description != "" {
			form.Set(prefix+"[price_data][product_data][description]", li.Description)
		}
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(li.UnitAmountMinor, 10))
		form.Set(prefix+"[quantity]", strconv.Itoa(li.Quantity))
		for j, ref := range li.TaxRateRefs {
			form.Set(fmt.Sprintf("%s[tax_rates][%d]", prefix, j), ref)
		}
	}
	for i, ref := range req.CouponRefs {
		form.Set(fmt.Sprintf("discounts[%d][coupon]", i), ref)
	}

	var resp struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := c.post(ctx, "/v1/checkout/sessions", form, &resp); err != nil {
		return nil, err
	}
	return &checkout.Session{ID: resp.ID, URL: resp.URL}, nil
}

// RegisterTaxRate creates a tax-rate object and returns its reference.
// Rates are created fresh on every checkout build and never reused.
func (c *Client) RegisterTaxRate(ctx context.Context, name string, percentage decimal.Decimal, inclusive bool) (string, error) {
	form := url.Values{}
	form.Set("display_name", name)
	form.Set("percentage", percentage.String())
	form.Set("inclusive", strconv.FormatBool(inclusive))

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/v1/tax_rates", form, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// RegisterPercentCoupon creates a single-use percentage coupon.
func (c *Client) RegisterPercentCoupon(ctx context.Context, name string, percentOff decimal.Decimal) (string, error) {
	form := url.Values{}
	form.Set("name", name)
	form.Set("percent_off", percentOff.String())
	form.Set("duration", "once")

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/v1/coupons", form, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// RegisterFixedCoupon creates a single-use fixed-amount coupon denominated
// in the given currency.
func (c *Client) RegisterFixedCoupon(ctx context.Context, name string, amountMinor int64, currency money.Currency) (string, error) {
	form := url.Values{}
	form.Set("name", name)
	form.Set("amount_off", strconv.FormatInt(amountMinor, 10))
	form.Set("currency", string(currency))
	form.Set("duration", "once")

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/v1/coupons", form, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "POST %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Error struct {
				Type    string `json:"type"`
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		// A failed decode still yields a usable APIError from the status.
		_ = json.NewDecoder(resp.Body).Decode(&envelope)
		return &APIError{
			StatusCode: resp.StatusCode,
			Type:       envelope.Error.Type,
			Code:       envelope.Error.Code,
			Message:    envelope.Error.Message,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s response", path)
	}
	return nil
}
