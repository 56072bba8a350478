package handler

import (
	"errors"
	"io"
	"net/http"

	"checkout-fulfillment/service"
	"checkout-fulfillment/store"
	"checkout-fulfillment/webhook"
)

// Stripe caps event payloads well below this.
const maxWebhookBody = 64 << 10

type paymentResp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ConfirmPayment handles POST /api/confirm-stripe-payment
// body: raw Stripe event, signed in the Stripe-Signature header
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "Webhook Error: "+err.Error())
		return
	}

	ev, err := h.verifier.Parse(payload, r.Header.Get(webhook.SignatureHeader))
	if err != nil {
		h.logger.Warn("webhook rejected", "error", err)
		writeErr(w, http.StatusBadRequest, "Webhook Error: "+err.Error())
		return
	}

	res, err := h.svc.HandleEvent(r.Context(), ev)
	switch {
	case errors.Is(err, store.ErrCartNotFound):
		h.logger.Warn("webhook fulfillment rolled back", "event_id", ev.ID, "error", err)
		writeJSON(w, http.StatusBadRequest, paymentResp{Message: "Cart not found"})
		return
	case errors.Is(err, service.ErrInvalidSession):
		h.logger.Warn("webhook metadata rejected", "event_id", ev.ID, "error", err)
		writeJSON(w, http.StatusBadRequest, paymentResp{Message: "Invalid session metadata"})
		return
	case err != nil:
		// includes an unknown order, which may not be committed yet; Stripe retries on 5xx
		h.logger.Error("webhook processing failed", "event_id", ev.ID, "type", ev.Type, "error", err)
		writeJSON(w, http.StatusInternalServerError, paymentResp{Message: "Error processing payment"})
		return
	}

	h.logger.Info("webhook handled", "event_id", ev.ID, "type", ev.Type, "outcome", res.Outcome.String(), "order_id", res.OrderID)
	writeJSON(w, http.StatusOK, paymentResp{Success: true, Message: res.Message})
}
