package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/internal/core/pricing"
	"github.com/niksmo/storefront/internal/core/variant"
)

var _ port.CatalogQuerier = (*CatalogService)(nil)

type CatalogService struct {
	catalog port.CatalogReader
}

func NewCatalogService(catalog port.CatalogReader) CatalogService {
	return CatalogService{catalog}
}

func (s CatalogService) ProductPage(
	ctx context.Context, productID string,
) (domain.ProductPage, error) {
	const op = "CatalogService.ProductPage"

	if err := ctx.Err(); err != nil {
		return domain.ProductPage{}, fmt.Errorf("%s: %w", op, err)
	}

	product, variants, err := s.productWithVariants(ctx, productID)
	if err != nil {
		return domain.ProductPage{}, fmt.Errorf("%s: %w", op, err)
	}

	page := domain.ProductPage{
		Product:            product,
		Variants:           variants,
		Options:            variant.Options(product.OptionNames, variants),
		PriceRange:         pricing.FormatUnitAmountRange(oneTimePrices(product, variants)),
		RecurringIntervals: pricing.UniqueRecurringIntervals(product.Prices),
		ShouldHaveVariants: len(product.OptionNames) != 0,
	}

	if p, ok := pricing.DefaultOrCheapest(product.DefaultPrice, product.Prices); ok {
		page.DisplayPrice = &p
	}

	page.CanAddToCart = product.Active &&
		len(variants) == 0 &&
		!page.ShouldHaveVariants &&
		page.DisplayPrice != nil

	return page, nil
}

func (s CatalogService) ResolveSelection(
	ctx context.Context, productID string, selection domain.OptionMap,
) (domain.Resolution, error) {
	const op = "CatalogService.ResolveSelection"

	if err := ctx.Err(); err != nil {
		return domain.Resolution{}, fmt.Errorf("%s: %w", op, err)
	}

	_, variants, err := s.productWithVariants(ctx, productID)
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("%s: %w", op, err)
	}

	return variant.Resolve(variants, selection), nil
}

// ResolveLineItem turns a product and a selection into a cart entry with
// quantity one. Only a fully resolved, active, priced variant qualifies.
func (s CatalogService) ResolveLineItem(
	ctx context.Context, productID string, selection domain.OptionMap,
) (domain.LineItem, error) {
	const op = "CatalogService.ResolveLineItem"

	product, variants, err := s.productWithVariants(ctx, productID)
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("%s: %w", op, err)
	}

	if !product.Active {
		return domain.LineItem{}, fmt.Errorf("%s: %w", op, ErrProductUnavailable)
	}

	if len(variants) == 0 {
		if len(product.OptionNames) != 0 {
			return domain.LineItem{}, fmt.Errorf("%s: %w", op, ErrNoMatch)
		}
		price, ok := pricing.DefaultOrCheapest(product.DefaultPrice, product.Prices)
		if !ok {
			return domain.LineItem{}, fmt.Errorf("%s: %w", op, ErrNoPrice)
		}
		return lineItem(product.ID, product.Name, price), nil
	}

	r := variant.Resolve(variants, selection)
	switch r.Status {
	case domain.Ambiguous:
		return domain.LineItem{}, fmt.Errorf(
			"%s: %w: %d candidates", op, ErrAmbiguousSelection, len(r.Matches),
		)
	case domain.NoMatch:
		return domain.LineItem{}, fmt.Errorf("%s: %w", op, ErrNoMatch)
	}

	v := r.Variant
	if !v.Active {
		return domain.LineItem{}, fmt.Errorf("%s: %w", op, ErrNoMatch)
	}

	price, ok := pricing.DefaultOrCheapest(v.DefaultPrice, v.Prices)
	if !ok {
		return domain.LineItem{}, fmt.Errorf("%s: %w", op, ErrNoPrice)
	}
	return lineItem(v.ID, v.Name, price), nil
}

func (s CatalogService) productWithVariants(
	ctx context.Context, productID string,
) (domain.Product, []domain.Variant, error) {
	const op = "CatalogService.productWithVariants"
	log := slog.With("op", op, "productID", productID)

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, nil, err
	}

	listed, err := s.catalog.ListVariants(ctx, product.ID)
	if err != nil {
		return domain.Product{}, nil, err
	}

	variants := make([]domain.Variant, 0, len(listed))
	for _, v := range listed {
		if v.ID == product.ID {
			continue
		}
		if len(product.OptionNames) != 0 {
			if err := variant.CheckVocabulary(product.OptionNames, v); err != nil {
				log.Warn("variant dropped", "err", err)
				continue
			}
		}
		variants = append(variants, v)
	}
	return product, variants, nil
}

func oneTimePrices(product domain.Product, variants []domain.Variant) []domain.Price {
	var out []domain.Price
	add := func(ps []domain.Price) {
		for _, p := range ps {
			if !p.IsRecurring() {
				out = append(out, p)
			}
		}
	}
	add(product.Prices)
	for _, v := range variants {
		add(v.Prices)
	}
	return out
}

func lineItem(productID, productName string, p domain.Price) domain.LineItem {
	return domain.LineItem{
		ID:          p.ID,
		Quantity:    1,
		ProductID:   productID,
		ProductName: productName,
		Currency:    p.Currency,
		UnitAmount:  p.UnitAmount,
		Recurring:   p.Recurring,
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
