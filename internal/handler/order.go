package handler

import (
	"encoding/json"
	"net/http"

	"github.com/xenking/stripeshop/internal/domain/money"
	"github.com/xenking/stripeshop/internal/domain/order"
)

type orderLineResponse struct {
	Item     itemResponse `json:"item"`
	Quantity int          `json:"quantity"`
}

type orderResponse struct {
	ID                int64               `json:"id"`
	Currency          string              `json:"currency"`
	Paid              bool                `json:"paid"`
	CheckoutSessionID string              `json:"checkout_session_id,omitempty"`
	Lines             []orderLineResponse `json:"lines"`
	TotalMinor        *int64              `json:"total_minor,omitempty"`
}

func toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:                o.ID,
		Currency:          string(o.Currency),
		Paid:              o.Paid,
		CheckoutSessionID: o.CheckoutSessionID,
		Lines:             make([]orderLineResponse, len(o.Lines)),
	}
	for i, l := range o.Lines {
		resp.Lines[i] = orderLineResponse{Item: toItemResponse(l.Item), Quantity: l.Quantity}
	}
	// Same-currency totals only; orders with foreign-currency lines get
	// their total at checkout time, after conversion.
	if total, err := o.TotalMinor(); err == nil {
		resp.TotalMinor = &total
	}
	return resp
}

type createOrderRequest struct {
	Currency string `json:"currency"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	req := createOrderRequest{Currency: "eur"}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	currency, err := money.ParseCurrency(req.Currency)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	o, err := h.orders.Create(r.Context(), currency)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "orderID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type addItemRequest struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

func (h *Handler) addOrderItem(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 {
		writeError(w, http.StatusUnprocessableEntity, order.ErrInvalidQuantity.Error())
		return
	}

	// Items must exist before they can be added; a bare FK violation would
	// read as a 500.
	if _, err := h.items.GetByID(r.Context(), req.ItemID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if _, err := h.orders.Get(r.Context(), orderID); err != nil {
		writeDomainError(w, r, err)
		return
	}

	if err := h.orders.AddLine(r.Context(), orderID, req.ItemID, req.Quantity); err != nil {
		writeDomainError(w, r, err)
		return
	}

	o, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type setCurrencyRequest struct {
	Currency string `json:"currency"`
}

func (h *Handler) setOrderCurrency(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req setCurrencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	currency, err := money.ParseCurrency(req.Currency)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if err := h.orders.SetCurrency(r.Context(), orderID, currency); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) attachDiscount(w http.ResponseWriter, r *http.Request) {
	orderID, okOrder := pathID(r, "orderID")
	discountID, okDiscount := pathID(r, "discountID")
	if !okOrder || !okDiscount {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if _, err := h.orders.Get(r.Context(), orderID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.orders.AttachDiscount(r.Context(), orderID, discountID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) attachTax(w http.ResponseWriter, r *http.Request) {
	orderID, okOrder := pathID(r, "orderID")
	taxID, okTax := pathID(r, "taxID")
	if !okOrder || !okTax {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if _, err := h.orders.Get(r.Context(), orderID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.orders.AttachTax(r.Context(), orderID, taxID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

func (h *Handler) buyItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(r, "itemID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	session, err := h.checkout.BuyItem(r.Context(), itemID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: session.ID, URL: session.URL})
}

func (h *Handler) buyOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	session, err := h.checkout.BuyOrder(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: session.ID, URL: session.URL})
}
