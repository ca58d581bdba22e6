// Package webhook exposes the inbound Telegram webhook endpoint.
package webhook

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"granabot/internal/bot"
	"granabot/internal/telegram"
	"github.com/go-chi/chi/v5"
)

// maxBodySize bounds an inbound delivery (64KB is generous for a text
// message envelope).
const maxBodySize = 64 << 10

// Handler authenticates and dispatches webhook deliveries.
type Handler struct {
	secret     string
	dispatcher *bot.Dispatcher
}

// NewHandler creates a webhook handler.
func NewHandler(secret string, dispatcher *bot.Dispatcher) *Handler {
	return &Handler{secret: secret, dispatcher: dispatcher}
}

// RegisterRoutes registers the webhook route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook/telegram", h.HandleUpdate)
}

// HandleUpdate processes one delivery. The shared secret is compared in
// constant time; anything past authentication answers 200 whatever the
// processing outcome, so the platform never retries a delivery we already
// consumed.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(telegram.SecretTokenHeader)
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
		slog.Warn("Rejected webhook delivery with bad secret", "remote_addr", r.RemoteAddr)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		// Malformed envelope: acknowledge anyway, a retry would not parse
		// any better.
		slog.Warn("Failed to decode webhook envelope", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	h.dispatcher.HandleUpdate(r.Context(), update)

	w.WriteHeader(http.StatusOK)
}
