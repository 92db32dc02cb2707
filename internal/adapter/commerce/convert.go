package commerce

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/variant"
	"github.com/stripe/stripe-go/v81"
)

// Metadata keys the storefront admin writes on catalog objects.
const (
	metaParentProduct   = "parentProduct"
	metaVariantFeatures = "variant_features"
	metaVariantOptions  = "variant_options"
	metaDeleted         = "deleted"
	metaMinWeight       = "minWeight"
	metaMaxWeight       = "maxWeight"
)

const unboundedWeight = -1

func toPrice(p *stripe.Price) domain.Price {
	out := domain.Price{
		ID:       p.ID,
		Currency: string(p.Currency),
		Type:     domain.PriceType(p.Type),
		Active:   p.Active && !p.Deleted && !markedDeleted(p.Metadata),
	}

	if p.Product != nil {
		out.ProductID = p.Product.ID
	}

	if p.CustomUnitAmount == nil && p.BillingScheme != stripe.PriceBillingSchemeTiered {
		amount := p.UnitAmount
		out.UnitAmount = &amount
	}

	if p.Recurring != nil {
		out.Type = domain.PriceRecurring
		out.Recurring = &domain.Recurring{
			Interval:      string(p.Recurring.Interval),
			IntervalCount: p.Recurring.IntervalCount,
		}
	}
	return out
}

func toPrices(ps []*stripe.Price) []domain.Price {
	out := make([]domain.Price, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPrice(p))
	}
	return out
}

func toProduct(p *stripe.Product, prices []domain.Price) domain.Product {
	out := domain.Product{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Active:       productActive(p),
		Images:       p.Images,
		DefaultPrice: defaultPrice(p, prices),
		Prices:       prices,
		ParentID:     p.Metadata[metaParentProduct],
		OptionNames:  optionNames(p.ID, p.Metadata[metaVariantFeatures]),
		Shippable:    p.Shippable,
	}

	if p.PackageDimensions != nil {
		out.Weight = p.PackageDimensions.Weight
	}
	return out
}

func toVariant(p *stripe.Product, prices []domain.Price) domain.Variant {
	return domain.Variant{
		ID:           p.ID,
		Name:         p.Name,
		Options:      optionMap(p.ID, p.Metadata[metaVariantOptions]),
		DefaultPrice: defaultPrice(p, prices),
		Prices:       prices,
		Active:       productActive(p),
	}
}

func toShippingRate(r *stripe.ShippingRate) domain.ShippingRate {
	out := domain.ShippingRate{
		ID:          r.ID,
		DisplayName: r.DisplayName,
		MinWeight:   parseWeight(r.Metadata[metaMinWeight], 0),
		MaxWeight:   parseWeight(r.Metadata[metaMaxWeight], unboundedWeight),
	}
	if r.FixedAmount != nil {
		out.Amount = r.FixedAmount.Amount
		out.Currency = string(r.FixedAmount.Currency)
	}
	return out
}

// defaultPrice looks the product's default price up among its active
// prices. An inactive default price is ignored.
func defaultPrice(p *stripe.Product, prices []domain.Price) *domain.Price {
	if p.DefaultPrice == nil || p.DefaultPrice.ID == "" {
		return nil
	}
	for _, price := range prices {
		if price.ID == p.DefaultPrice.ID {
			return &price
		}
	}
	return nil
}

func productActive(p *stripe.Product) bool {
	return p.Active && !p.Deleted && !markedDeleted(p.Metadata)
}

func markedDeleted(md map[string]string) bool {
	return strings.EqualFold(md[metaDeleted], "true")
}

// optionNames parses the declared option names. Both ["Color"] and
// [{"name":"Color"}] are accepted.
func optionNames(productID, raw string) []string {
	if raw == "" {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		slog.Warn("malformed variant features",
			"op", "commerce.optionNames", "productID", productID, "err", err,
		)
		return nil
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		var name string
		if err := json.Unmarshal(item, &name); err != nil {
			var feature struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(item, &feature); err != nil {
				continue
			}
			name = feature.Name
		}
		names = append(names, name)
	}
	return variant.CanonicalNames(names)
}

func optionMap(productID, raw string) domain.OptionMap {
	if raw == "" {
		return nil
	}

	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		slog.Warn("malformed variant options",
			"op", "commerce.optionMap", "productID", productID, "err", err,
		)
		return nil
	}
	return variant.Canonicalize(m)
}

func parseWeight(s string, fallback float64) float64 {
	if s == "" {
		return fallback
	}
	w, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fallback
	}
	return w
}
