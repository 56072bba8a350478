package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

type sendEmailReq struct {
	UserID string `json:"userId"`
	// the payment page posts the id as a string, API clients may send a number
	OrderID json.RawMessage `json:"orderId"`
}

// orderIDFrom returns present=false for a missing, null or empty id.
func orderIDFrom(raw json.RawMessage) (id int64, present bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false, nil
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, true, err
		}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	id, err = strconv.ParseInt(s, 10, 64)
	if err == nil && id <= 0 {
		err = strconv.ErrRange
	}
	return id, true, err
}

// SendEmail handles POST /api/send-email
// body: { "userId": "...", "orderId": "42" }
func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": "Method " + r.Method + " Not Allowed"})
		return
	}

	var req sendEmailReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid json"})
		return
	}
	orderID, present, err := orderIDFrom(req.OrderID)
	if req.UserID == "" || !present {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "User ID and Order ID are required."})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Order ID must be a positive number."})
		return
	}

	// the caller learns nothing about the order or the mail relay
	if err := h.svc.RequestConfirmation(r.Context(), req.UserID, orderID); err != nil {
		h.logger.Warn("order details email not sent", "order_id", orderID, "user_id", req.UserID, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Email sent successfully."})
}

type paymentPage struct {
	SupportEmail string
	UserID       string
	OrderID      string
	Confirm      bool
}

// PaymentSuccess handles GET /payment-success?userId=...&orderId=...
func (h *Handler) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := paymentPage{
		SupportEmail: h.site.SupportEmail,
		UserID:       q.Get("userId"),
		OrderID:      q.Get("orderId"),
	}
	data.Confirm = data.UserID != "" && data.OrderID != ""

	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, "payment_success.html", data); err != nil {
		h.logger.Error("render payment page", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
