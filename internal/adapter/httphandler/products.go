package httphandler

import (
	"log/slog"
	"net/http"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

// GET  v1/products/{id}           (200 OK, 404 Not found)
// POST v1/products/{id}/selection JSON {"options": {"color": "Red"}} (200 OK, 400 Bad request)

type ProductsHandler struct {
	catalog port.CatalogQuerier
}

func RegisterProducts(mux *http.ServeMux, catalog port.CatalogQuerier) {
	h := ProductsHandler{catalog}
	mux.HandleFunc("GET /v1/products/{id}", h.GetProduct)
	mux.HandleFunc("POST /v1/products/{id}/selection", h.PostSelection)
}

func (h ProductsHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	const op = "ProductsHandler.GetProduct"
	productID := r.PathValue("id")
	log := slog.With("op", op, "productID", productID)

	page, err := h.catalog.ProductPage(r.Context(), productID)
	if err != nil {
		writeError(w, log, err)
		return
	}

	writeJSON(w, log, http.StatusOK, toProductPage(page))
}

func (h ProductsHandler) PostSelection(w http.ResponseWriter, r *http.Request) {
	const op = "ProductsHandler.PostSelection"
	productID := r.PathValue("id")
	log := slog.With("op", op, "productID", productID)

	var req SelectionRequest
	if err := readJSON(w, r, &req, false); err != nil {
		writeError(w, log, err)
		return
	}

	res, err := h.catalog.ResolveSelection(
		r.Context(), productID, domain.OptionMap(req.Options),
	)
	if err != nil {
		writeError(w, log, err)
		return
	}

	log.Debug("selection resolved", "status", res.Status, "nMatches", len(res.Matches))
	writeJSON(w, log, http.StatusOK, toResolution(res))
}
