package commerce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/stripe/stripe-go/v81"
)

func (c Client) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	const op = "Client.GetProduct"

	params := &stripe.ProductParams{}
	params.Context = ctx

	p, err := c.api.Products.Get(productID, params)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	prices, err := c.ListPrices(ctx, p.ID)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%s: %w", op, err)
	}
	return toProduct(p, prices), nil
}

// ListVariants returns the products whose metadata names parentID as
// their parent. Products marked deleted are skipped by the query.
func (c Client) ListVariants(ctx context.Context, parentID string) ([]domain.Variant, error) {
	const op = "Client.ListVariants"

	params := &stripe.ProductSearchParams{}
	params.Context = ctx
	params.Query = variantsQuery(parentID)

	var variants []domain.Variant
	iter := c.api.Products.Search(params)
	for iter.Next() {
		p := iter.Product()
		prices, err := c.ListPrices(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		variants = append(variants, toVariant(p, prices))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return variants, nil
}

var searchValueEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func variantsQuery(parentID string) string {
	return fmt.Sprintf(
		"metadata['%s']:'%s' AND -metadata['%s']:'true'",
		metaParentProduct, searchValueEscaper.Replace(parentID), metaDeleted,
	)
}

// ListPrices returns the active prices of a product.
func (c Client) ListPrices(ctx context.Context, productID string) ([]domain.Price, error) {
	const op = "Client.ListPrices"

	params := &stripe.PriceListParams{
		Product: stripe.String(productID),
		Active:  stripe.Bool(true),
	}
	params.Context = ctx

	var prices []*stripe.Price
	iter := c.api.Prices.List(params)
	for iter.Next() {
		prices = append(prices, iter.Price())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	out := toPrices(prices)
	for i := range out {
		if out[i].ProductID == "" {
			out[i].ProductID = productID
		}
	}
	return out, nil
}

func (c Client) GetPrice(ctx context.Context, priceID string) (domain.Price, error) {
	const op = "Client.GetPrice"

	params := &stripe.PriceParams{}
	params.Context = ctx

	p, err := c.api.Prices.Get(priceID, params)
	if err != nil {
		return domain.Price{}, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return toPrice(p), nil
}

// CombinedWeight sums the package weight of the products. Products that
// no longer exist weigh nothing.
func (c Client) CombinedWeight(ctx context.Context, productIDs []string) (float64, error) {
	const op = "Client.CombinedWeight"
	log := slog.With("op", op)

	var total float64
	for _, id := range productIDs {
		params := &stripe.ProductParams{}
		params.Context = ctx

		p, err := c.api.Products.Get(id, params)
		if err != nil {
			err = mapErr(err)
			if errors.Is(err, domain.ErrNotFound) {
				log.Warn("product is gone", "productID", id)
				continue
			}
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		if p.PackageDimensions != nil {
			total += p.PackageDimensions.Weight
		}
	}
	return total, nil
}

// ListShippingRates returns the active shipping rates in platform order.
func (c Client) ListShippingRates(ctx context.Context) ([]domain.ShippingRate, error) {
	const op = "Client.ListShippingRates"

	params := &stripe.ShippingRateListParams{Active: stripe.Bool(true)}
	params.Context = ctx

	var rates []domain.ShippingRate
	iter := c.api.ShippingRates.List(params)
	for iter.Next() {
		rates = append(rates, toShippingRate(iter.ShippingRate()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}
	return rates, nil
}
