// Package handler exposes the HTTP surface: catalog reads, order
// management, checkout submission, and the provider webhook.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/stripeshop/internal/domain/catalog"
	"github.com/xenking/stripeshop/internal/domain/checkout"
	"github.com/xenking/stripeshop/internal/domain/money"
	"github.com/xenking/stripeshop/internal/domain/order"
	"github.com/xenking/stripeshop/internal/domain/settlement"
	"github.com/xenking/stripeshop/internal/stripe"
)

// Handler wires the domain services to HTTP routes.
type Handler struct {
	items      catalog.Repository
	orders     order.Repository
	checkout   *checkout.Service
	reconciler *settlement.Reconciler
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	items catalog.Repository,
	orders order.Repository,
	checkoutSvc *checkout.Service,
	reconciler *settlement.Reconciler,
) *Handler {
	return &Handler{
		items:      items,
		orders:     orders,
		checkout:   checkoutSvc,
		reconciler: reconciler,
	}
}

// Routes returns the chi router for all endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/items", h.listItems)
		r.Post("/items", h.createItem)
		r.Get("/items/{itemID}", h.getItem)
		r.Post("/items/{itemID}/checkout", h.buyItem)

		r.Post("/orders", h.createOrder)
		r.Get("/orders/{orderID}", h.getOrder)
		r.Post("/orders/{orderID}/items", h.addOrderItem)
		r.Put("/orders/{orderID}/currency", h.setOrderCurrency)
		r.Post("/orders/{orderID}/discounts/{discountID}", h.attachDiscount)
		r.Post("/orders/{orderID}/taxes/{taxID}", h.attachTax)
		r.Post("/orders/{orderID}/checkout", h.buyOrder)
	})

	r.Post("/webhooks/stripe", h.stripeWebhook)

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps domain errors onto HTTP statuses: missing records
// are 404, invalid input 422, configuration gaps 400, provider rejections
// 502, everything else 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, order.ErrInvalidQuantity):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, money.ErrUnknownCurrency):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		rateErr   *money.MissingRateError
		credErr   *checkout.NoCredentialsError
		stripeErr *stripe.APIError
	)
	switch {
	case errors.As(err, &rateErr), errors.As(err, &credErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &stripeErr):
		zctx.From(r.Context()).Error("Provider rejected request", zap.Error(err))
		writeError(w, http.StatusBadGateway, "payment provider rejected the request")
	default:
		zctx.From(r.Context()).Error("Internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}
