package httphandler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/niksmo/storefront/internal/core/port"
)

// POST v1/webhooks/commerce signed event payload (200 OK, 400 Bad request, 503)

const signatureHeader = "Stripe-Signature"

type WebhooksHandler struct {
	receiver port.WebhookReceiver
}

func RegisterWebhooks(mux *http.ServeMux, receiver port.WebhookReceiver) {
	h := WebhooksHandler{receiver}
	mux.HandleFunc("POST /v1/webhooks/commerce", h.PostEvent)
}

func (h WebhooksHandler) PostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "WebhooksHandler.PostEvent"
	log := slog.With("op", op)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		log.Warn("failed to read payload", "err", err)
		return
	}

	err = h.receiver.ReceiveWebhook(r.Context(), payload, r.Header.Get(signatureHeader))
	if err != nil {
		writeError(w, log, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
