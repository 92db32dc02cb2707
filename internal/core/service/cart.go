package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/niksmo/storefront/internal/core/cart"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

var _ port.CartManager = (*CartService)(nil)

type lineItemResolver interface {
	ResolveLineItem(
		ctx context.Context, productID string, selection domain.OptionMap,
	) (domain.LineItem, error)
}

// CartService owns carts. Every mutation is loaded, applied and saved
// under the cart's lock, and the caller sees the state the store accepted.
type CartService struct {
	store    port.CartStore
	resolver lineItemResolver
	catalog  port.CatalogReader
	view     port.AvailabilityView
	locks    *cartLocks
	tokens   *requestTokens
}

// NewCartService creates the service. view may be nil, then availability
// is checked against the catalog only.
func NewCartService(
	store port.CartStore,
	resolver lineItemResolver,
	catalog port.CatalogReader,
	view port.AvailabilityView,
) *CartService {
	return &CartService{
		store:    store,
		resolver: resolver,
		catalog:  catalog,
		view:     view,
		locks:    newCartLocks(),
		tokens:   newRequestTokens(),
	}
}

func (s *CartService) New(ctx context.Context) (domain.CartSummary, error) {
	const op = "CartService.New"

	if err := ctx.Err(); err != nil {
		return domain.CartSummary{}, fmt.Errorf("%s: %w", op, err)
	}
	return cart.New(uuid.NewString(), nil).Summary(), nil
}

func (s *CartService) Get(ctx context.Context, cartID string) (domain.CartSummary, error) {
	const op = "CartService.Get"

	c, err := s.load(ctx, cartID)
	if err != nil {
		return domain.CartSummary{}, fmt.Errorf("%s: %w", op, err)
	}
	return c.Summary(), nil
}

func (s *CartService) Add(
	ctx context.Context,
	cartID, productID string,
	selection domain.OptionMap,
	quantity int,
) (domain.CartSummary, error) {
	const op = "CartService.Add"

	if err := ctx.Err(); err != nil {
		return domain.CartSummary{}, fmt.Errorf("%s: %w", op, err)
	}

	item, err := s.resolver.ResolveLineItem(ctx, productID, selection)
	if err != nil {
		return domain.CartSummary{}, fmt.Errorf("%s: %w", op, err)
	}
	item.Quantity = quantity

	summary, err := s.AddItem(ctx, cartID, item)
	if err != nil {
		return domain.CartSummary{}, fmt.Errorf("%s: %w", op, err)
	}
	return summary, nil
}

// AddItem reconciles an already resolved entry into the cart.
func (s *CartService) AddItem(
	ctx context.Context, cartID string, item domain.LineItem,
) (domain.CartSummary, error) {
	const op = "CartService.AddItem"

	summary, err := s.mutate(ctx, cartID, func(c *cart.Cart) error {
		c.Add(item)
		return nil
	})
	if err != nil {
		return domain.CartSummary{}, fmt.Errorf("%s: %w", op, err)
	}

	slog.Info("item added",
		"op", op, "cartID", cartID, "priceID", item.ID, "quantity", item.Quantity,
	)
	return summary, nil
}

// SetQuantity replaces the quantity of an entry. A request overtaken by a
// newer one for the same entry fails with ErrStaleUpdate.
func (s *CartService) SetQuantity(
	ctx context.Context, cartID, priceID string, quantity int,
) (domain.CartSummary, error) {
	const op = "CartService.SetQuantity"
	log := slog.With("op", op, "cartID", cartID, "priceID", priceID)

	field := cartID + "/" + priceID
	token := s.tokens.issue(field)
	defer s.tokens.release(field, token)

	summary, err := s.mutate(ctx, cartID, func(c *cart.Cart) error {
		if !s.tokens.isLatest(field, token) {
			return ErrStaleUpdate
		}
		stored, err := c.SetQuantity(priceID, quantity)
		if err != nil {
			return err
		}
		if stored != quantity {
			log.Warn("quantity coerced", "requested", quantity, "stored", stored)
		}
		return nil
	})
	if err != nil {
		return domain.CartSummary{}, fmt.Errorf("%s: %w", op, err)
	}
	return summary, nil
}

func (s *CartService) Remove(
	ctx context.Context, cartID, priceID string,
) (domain.CartSummary, error) {
	const op = "CartService.Remove"

	summary, err := s.mutate(ctx, cartID, func(c *cart.Cart) error {
		return c.Remove(priceID)
	})
	if err != nil {
		return domain.CartSummary{}, fmt.Errorf("%s: %w", op, err)
	}
	return summary, nil
}

func (s *CartService) Clear(ctx context.Context, cartID string) error {
	const op = "CartService.Clear"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	unlock := s.locks.lock(cartID)
	defer unlock()

	if err := s.store.DeleteCart(ctx, cartID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	slog.Info("cart cleared", "op", op, "cartID", cartID)
	return nil
}

// Refresh re-checks every entry and records its availability.
func (s *CartService) Refresh(
	ctx context.Context, cartID string,
) (domain.CartSummary, error) {
	const op = "CartService.Refresh"
	log := slog.With("op", op, "cartID", cartID)

	summary, err := s.mutate(ctx, cartID, func(c *cart.Cart) error {
		for _, it := range c.Items {
			available, err := s.availability(ctx, it)
			if err != nil {
				return err
			}
			if !available {
				log.Warn("item is no longer available", "priceID", it.ID)
			}
			if err := c.SetAvailability(it.ID, available); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.CartSummary{}, fmt.Errorf("%s: %w", op, err)
	}
	return summary, nil
}

// FlagUnavailable marks the price or product id stale in every stored cart.
// Each cart is flagged under its lock so a concurrent mutation cannot
// overwrite the flag with a copy loaded before it.
func (s *CartService) FlagUnavailable(ctx context.Context, ref string) (int, error) {
	const op = "CartService.FlagUnavailable"

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	cartIDs, err := s.store.CartsReferencing(ctx, ref)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var total int
	for _, cartID := range cartIDs {
		n, err := s.flagCart(ctx, cartID, ref)
		if err != nil {
			return total, fmt.Errorf("%s: cart %q: %w", op, cartID, err)
		}
		total += n
	}
	return total, nil
}

func (s *CartService) flagCart(ctx context.Context, cartID, ref string) (int, error) {
	unlock := s.locks.lock(cartID)
	defer unlock()

	return s.store.FlagUnavailable(ctx, cartID, ref)
}

func (s *CartService) availability(ctx context.Context, it domain.LineItem) (bool, error) {
	const op = "CartService.availability"

	if s.view != nil {
		for _, ref := range []string{it.ID, it.ProductID} {
			if ref == "" {
				continue
			}
			available, known, err := s.view.Availability(ref)
			if err != nil {
				slog.Warn("availability view failed", "op", op, "ref", ref, "err", err)
				continue
			}
			if known && !available {
				return false, nil
			}
		}
	}

	price, err := s.catalog.GetPrice(ctx, it.ID)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !price.Active {
		return false, nil
	}

	productID := price.ProductID
	if productID == "" {
		productID = it.ProductID
	}
	if productID == "" {
		return true, nil
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return product.Active, nil
}

func (s *CartService) load(ctx context.Context, cartID string) (*cart.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items, err := s.store.LoadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return cart.New(cartID, items), nil
}

func (s *CartService) mutate(
	ctx context.Context, cartID string, fn func(*cart.Cart) error,
) (domain.CartSummary, error) {
	unlock := s.locks.lock(cartID)
	defer unlock()

	c, err := s.load(ctx, cartID)
	if err != nil {
		return domain.CartSummary{}, err
	}

	if err := fn(c); err != nil {
		return domain.CartSummary{}, err
	}

	if err := s.store.SaveCart(ctx, cartID, c.Items); err != nil {
		return domain.CartSummary{}, err
	}
	return c.Summary(), nil
}
