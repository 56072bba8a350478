package handler

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"checkout-fulfillment/config"
	"checkout-fulfillment/service"
	"checkout-fulfillment/webhook"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Pinger reports whether the backing database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler is the HTTP layer that talks to service.Service
type Handler struct {
	svc      service.ServiceInterface
	verifier *webhook.Verifier
	db       Pinger
	site     config.SiteConfig
	logger   *slog.Logger
}

// NewHandler returns a Handler instance
func NewHandler(s service.ServiceInterface, v *webhook.Verifier, db Pinger, site config.SiteConfig, logger *slog.Logger) *Handler {
	return &Handler{svc: s, verifier: v, db: db, site: site, logger: logger}
}

// RegisterRoutes registers all routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.Use(h.logRequests)

	// Stripe webhook
	r.HandleFunc("/api/confirm-stripe-payment", h.ConfirmPayment).Methods(http.MethodPost)

	// Confirmation email; the method check lives in the handler so other verbs get 405 with Allow
	r.HandleFunc("/api/send-email", h.SendEmail)

	// Pages
	r.HandleFunc("/payment-success", h.PaymentSuccess).Methods(http.MethodGet)

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
}

// --- helpers ---
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]interface{}{"error": true, "message": msg})
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
