package httphandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/niksmo/storefront/internal/core/cart"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/service"
)

const maxBodyBytes = 1 << 16

var errInvalidJSON = errors.New("invalid JSON data")

// errorStatuses is walked in order, the first sentinel wrapped by the
// error decides the status.
var errorStatuses = []struct {
	err    error
	status int
}{
	{domain.ErrNotFound, http.StatusNotFound},
	{cart.ErrItemNotFound, http.StatusNotFound},
	{service.ErrAmbiguousSelection, http.StatusUnprocessableEntity},
	{service.ErrNoMatch, http.StatusUnprocessableEntity},
	{service.ErrNoPrice, http.StatusUnprocessableEntity},
	{service.ErrProductUnavailable, http.StatusUnprocessableEntity},
	{service.ErrCartNotReady, http.StatusConflict},
	{service.ErrEmptyCart, http.StatusConflict},
	{service.ErrStaleUpdate, http.StatusConflict},
	{service.ErrInvalidWebhook, http.StatusBadRequest},
	{errInvalidJSON, http.StatusBadRequest},
}

// statusOf returns the response status for err and the message safe to
// show to the client. Unknown errors are reported as unavailable.
func statusOf(err error) (int, string) {
	for _, es := range errorStatuses {
		if errors.Is(err, es.err) {
			return es.status, publicMessage(err, es.err)
		}
	}
	return http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable)
}

// publicMessage strips operation prefixes, keeping the sentinel text and
// whatever detail follows it.
func publicMessage(err, sentinel error) string {
	msg, text := err.Error(), sentinel.Error()
	if i := strings.Index(msg, text); i >= 0 {
		return msg[i:]
	}
	return text
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "err", err)
	} else {
		log.Warn("request rejected", "status", status, "err", err)
	}
	writeJSON(w, log, status, errorResponse{msg})
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to write response body", "err", err)
	}
}

// readJSON decodes the request body into v. An empty body leaves v as is
// when optional is set.
func readJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return nil
	}
	return fmt.Errorf("%w: %v", errInvalidJSON, err)
}
