package httphandler

import (
	"log/slog"
	"net/http"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

// POST   v1/carts                            (201 Created)
// GET    v1/carts/{cartID}                   (200 OK)
// POST   v1/carts/{cartID}/items             JSON {"product_id", "options", "quantity"} (200 OK, 422)
// PATCH  v1/carts/{cartID}/items/{priceID}   JSON {"quantity"} (200 OK, 404, 409)
// DELETE v1/carts/{cartID}/items/{priceID}   (200 OK, 404)
// DELETE v1/carts/{cartID}                   (204 No content)
// POST   v1/carts/{cartID}/refresh           (200 OK)
// GET    v1/carts/{cartID}/quote             (200 OK)
// POST   v1/carts/{cartID}/checkout          JSON {"shipping_rate_id"} (200 OK, 409)

type CartsHandler struct {
	carts    port.CartManager
	checkout port.CheckoutManager
}

func RegisterCarts(
	mux *http.ServeMux, carts port.CartManager, checkout port.CheckoutManager,
) {
	h := CartsHandler{carts, checkout}
	mux.HandleFunc("POST /v1/carts", h.PostCart)
	mux.HandleFunc("GET /v1/carts/{cartID}", h.GetCart)
	mux.HandleFunc("DELETE /v1/carts/{cartID}", h.DeleteCart)
	mux.HandleFunc("POST /v1/carts/{cartID}/items", h.PostItem)
	mux.HandleFunc("PATCH /v1/carts/{cartID}/items/{priceID}", h.PatchItem)
	mux.HandleFunc("DELETE /v1/carts/{cartID}/items/{priceID}", h.DeleteItem)
	mux.HandleFunc("POST /v1/carts/{cartID}/refresh", h.PostRefresh)
	mux.HandleFunc("GET /v1/carts/{cartID}/quote", h.GetQuote)
	mux.HandleFunc("POST /v1/carts/{cartID}/checkout", h.PostCheckout)
}

func (h CartsHandler) PostCart(w http.ResponseWriter, r *http.Request) {
	const op = "CartsHandler.PostCart"
	log := slog.With("op", op)

	summary, err := h.carts.New(r.Context())
	if err != nil {
		writeError(w, log, err)
		return
	}

	log.Info("cart created", "cartID", summary.ID)
	writeJSON(w, log, http.StatusCreated, NewCart{CartID: summary.ID})
}

func (h CartsHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	const op = "CartsHandler.GetCart"
	cartID := r.PathValue("cartID")
	log := slog.With("op", op, "cartID", cartID)

	summary, err := h.carts.Get(r.Context(), cartID)
	h.writeSummary(w, log, summary, err)
}

func (h CartsHandler) DeleteCart(w http.ResponseWriter, r *http.Request) {
	const op = "CartsHandler.DeleteCart"
	cartID := r.PathValue("cartID")
	log := slog.With("op", op, "cartID", cartID)

	if err := h.carts.Clear(r.Context(), cartID); err != nil {
		writeError(w, log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h CartsHandler) PostItem(w http.ResponseWriter, r *http.Request) {
	const op = "CartsHandler.PostItem"
	cartID := r.PathValue("cartID")
	log := slog.With("op", op, "cartID", cartID)

	var req AddItemRequest
	if err := readJSON(w, r, &req, false); err != nil {
		writeError(w, log, err)
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	summary, err := h.carts.Add(
		r.Context(),
		cartID,
		req.ProductID,
		domain.OptionMap(req.Options),
		quantity,
	)
	h.writeSummary(w, log, summary, err)
}

func (h CartsHandler) PatchItem(w http.ResponseWriter, r *http.Request) {
	const op = "CartsHandler.PatchItem"
	cartID, priceID := r.PathValue("cartID"), r.PathValue("priceID")
	log := slog.With("op", op, "cartID", cartID, "priceID", priceID)

	var req QuantityRequest
	if err := readJSON(w, r, &req, false); err != nil {
		writeError(w, log, err)
		return
	}

	summary, err := h.carts.SetQuantity(r.Context(), cartID, priceID, req.Quantity)
	h.writeSummary(w, log, summary, err)
}

func (h CartsHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	const op = "CartsHandler.DeleteItem"
	cartID, priceID := r.PathValue("cartID"), r.PathValue("priceID")
	log := slog.With("op", op, "cartID", cartID, "priceID", priceID)

	summary, err := h.carts.Remove(r.Context(), cartID, priceID)
	h.writeSummary(w, log, summary, err)
}

func (h CartsHandler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "CartsHandler.PostRefresh"
	cartID := r.PathValue("cartID")
	log := slog.With("op", op, "cartID", cartID)

	summary, err := h.carts.Refresh(r.Context(), cartID)
	h.writeSummary(w, log, summary, err)
}

func (h CartsHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	const op = "CartsHandler.GetQuote"
	cartID := r.PathValue("cartID")
	log := slog.With("op", op, "cartID", cartID)

	quote, err := h.checkout.Quote(r.Context(), cartID)
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeJSON(w, log, http.StatusOK, toQuote(quote))
}

func (h CartsHandler) PostCheckout(w http.ResponseWriter, r *http.Request) {
	const op = "CartsHandler.PostCheckout"
	cartID := r.PathValue("cartID")
	log := slog.With("op", op, "cartID", cartID)

	var req CheckoutRequest
	if err := readJSON(w, r, &req, true); err != nil {
		writeError(w, log, err)
		return
	}

	session, err := h.checkout.Checkout(r.Context(), cartID, req.ShippingRateID)
	if err != nil {
		writeError(w, log, err)
		return
	}

	log.Info("checkout session created", "sessionID", session.ID)
	writeJSON(w, log, http.StatusOK, CheckoutSession{ID: session.ID, URL: session.URL})
}

func (CartsHandler) writeSummary(
	w http.ResponseWriter, log *slog.Logger, summary domain.CartSummary, err error,
) {
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeJSON(w, log, http.StatusOK, toCart(summary))
}
