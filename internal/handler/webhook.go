package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/stripeshop/internal/domain/settlement"
)

// maxWebhookBody caps the request body read. Stripe events are small; anything
// larger is not something we want to buffer.
const maxWebhookBody = 1 << 20

func (h *Handler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}

	err = h.reconciler.Reconcile(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, settlement.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		zctx.From(r.Context()).Error("webhook reconciliation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
