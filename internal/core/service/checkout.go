package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

var _ port.CheckoutManager = (*CheckoutService)(nil)

type CheckoutService struct {
	carts    port.CartManager
	catalog  port.CatalogReader
	sessions port.CheckoutSessionCreator
}

func NewCheckoutService(
	carts port.CartManager,
	catalog port.CatalogReader,
	sessions port.CheckoutSessionCreator,
) CheckoutService {
	return CheckoutService{carts, catalog, sessions}
}

// Quote prices the cart with the first shipping rate accepting its
// combined package weight.
func (s CheckoutService) Quote(ctx context.Context, cartID string) (domain.Quote, error) {
	const op = "CheckoutService.Quote"

	summary, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("%s: %w", op, err)
	}

	q, err := s.quote(ctx, summary)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("%s: %w", op, err)
	}
	return q, nil
}

// Checkout hands a ready cart over to the hosted checkout. When the
// platform rejects the session the cart is refreshed, so a stale entry
// surfaces as ErrCartNotReady naming the product.
func (s CheckoutService) Checkout(
	ctx context.Context, cartID, shippingRateID string,
) (domain.CheckoutSession, error) {
	const op = "CheckoutService.Checkout"
	log := slog.With("op", op, "cartID", cartID)

	summary, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := checkReady(summary); err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("%s: %w", op, err)
	}

	if shippingRateID == "" {
		q, err := s.quote(ctx, summary)
		if err != nil {
			return domain.CheckoutSession{}, fmt.Errorf("%s: %w", op, err)
		}
		if q.Shipping != nil {
			shippingRateID = q.Shipping.ID
		}
	}

	session, err := s.sessions.CreateCheckoutSession(
		ctx, checkoutRequest(summary, shippingRateID),
	)
	if err == nil {
		log.Info("checkout session created", "sessionID", session.ID)
		return session, nil
	}

	log.Warn("checkout session rejected, refreshing cart", "err", err)

	refreshed, rerr := s.carts.Refresh(ctx, cartID)
	if rerr != nil {
		return domain.CheckoutSession{}, fmt.Errorf(
			"%s: %w", op, errors.Join(err, rerr),
		)
	}
	if nerr := checkReady(refreshed); nerr != nil {
		return domain.CheckoutSession{}, fmt.Errorf("%s: %w", op, nerr)
	}
	return domain.CheckoutSession{}, fmt.Errorf("%s: %w", op, err)
}

func (s CheckoutService) quote(
	ctx context.Context, summary domain.CartSummary,
) (domain.Quote, error) {
	q := domain.Quote{Cart: summary, Total: summary.Subtotal}
	if len(summary.Items) == 0 {
		return q, nil
	}

	weight, err := s.catalog.CombinedWeight(ctx, productIDs(summary.Items))
	if err != nil {
		return domain.Quote{}, err
	}
	q.Weight = weight

	rates, err := s.catalog.ListShippingRates(ctx)
	if err != nil {
		return domain.Quote{}, err
	}

	if rate, ok := selectShippingRate(rates, weight); ok {
		q.Shipping = &rate
		q.Total += rate.Amount
	}
	return q, nil
}

// selectShippingRate returns the first rate whose weight bounds accept
// weight. A negative MaxWeight is unbounded. Zero weight skips filtering.
func selectShippingRate(
	rates []domain.ShippingRate, weight float64,
) (domain.ShippingRate, bool) {
	for _, r := range rates {
		if weight == 0 {
			return r, true
		}
		if weight < r.MinWeight {
			continue
		}
		if r.MaxWeight >= 0 && weight > r.MaxWeight {
			continue
		}
		return r, true
	}
	return domain.ShippingRate{}, false
}

func checkReady(summary domain.CartSummary) error {
	if len(summary.Items) == 0 {
		return ErrEmptyCart
	}
	if summary.Ready {
		return nil
	}

	var names []string
	for _, it := range summary.Items {
		if it.IsAvailable() {
			continue
		}
		name := it.ProductName
		if name == "" {
			name = it.ID
		}
		names = append(names, name)
	}
	return fmt.Errorf(
		"%w: %s no longer available", ErrCartNotReady, strings.Join(names, ", "),
	)
}

func checkoutRequest(summary domain.CartSummary, shippingRateID string) domain.CheckoutRequest {
	lines := make([]domain.CheckoutLine, 0, len(summary.Items))
	for _, it := range summary.Items {
		lines = append(lines, domain.CheckoutLine{PriceID: it.ID, Quantity: it.Quantity})
	}
	return domain.CheckoutRequest{
		CartID:         summary.ID,
		Items:          lines,
		ShippingRateID: shippingRateID,
	}
}

func productIDs(items []domain.LineItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.ProductID == "" {
			continue
		}
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}
