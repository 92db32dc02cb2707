package httphandler

import (
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/pricing"
)

type (
	Recurring struct {
		Interval      string `json:"interval"`
		IntervalCount int64  `json:"interval_count"`
	}

	Price struct {
		ID         string     `json:"id"`
		ProductID  string     `json:"product_id"`
		Currency   string     `json:"currency"`
		UnitAmount *int64     `json:"unit_amount"`
		Display    string     `json:"display,omitempty"`
		Type       string     `json:"type"`
		Recurring  *Recurring `json:"recurring,omitempty"`
	}

	Product struct {
		ID           string   `json:"id"`
		Name         string   `json:"name"`
		Description  string   `json:"description"`
		Images       []string `json:"images"`
		DefaultPrice *Price   `json:"default_price,omitempty"`
		Prices       []Price  `json:"prices"`
		OptionNames  []string `json:"option_names,omitempty"`
		Shippable    bool     `json:"shippable"`
	}

	Variant struct {
		ID           string            `json:"id"`
		Name         string            `json:"name"`
		Options      map[string]string `json:"options"`
		DefaultPrice *Price            `json:"default_price,omitempty"`
		Prices       []Price           `json:"prices"`
	}

	Option struct {
		Name   string   `json:"name"`
		Values []string `json:"values"`
	}

	ProductPage struct {
		Product            Product   `json:"product"`
		Variants           []Variant `json:"variants"`
		Options            []Option  `json:"options"`
		DisplayPrice       *Price    `json:"display_price"`
		PriceRange         string    `json:"price_range"`
		RecurringIntervals []Price   `json:"recurring_intervals"`
		ShouldHaveVariants bool      `json:"should_have_variants"`
		CanAddToCart       bool      `json:"can_add_to_cart"`
	}

	SelectionRequest struct {
		Options map[string]string `json:"options"`
	}

	Resolution struct {
		Status  string    `json:"status"`
		Matches []Variant `json:"matches"`
		Variant *Variant  `json:"variant,omitempty"`
	}
)

type (
	LineItem struct {
		PriceID     string     `json:"price_id"`
		Quantity    int        `json:"quantity"`
		Available   bool       `json:"available"`
		ProductID   string     `json:"product_id"`
		ProductName string     `json:"product_name"`
		Currency    string     `json:"currency"`
		UnitAmount  *int64     `json:"unit_amount"`
		Recurring   *Recurring `json:"recurring,omitempty"`
	}

	Cart struct {
		ID              string     `json:"cart_id"`
		Items           []LineItem `json:"items"`
		Subtotal        int64      `json:"subtotal"`
		SubtotalDisplay string     `json:"subtotal_display"`
		Ready           bool       `json:"ready"`
	}

	NewCart struct {
		CartID string `json:"cart_id"`
	}

	AddItemRequest struct {
		ProductID string            `json:"product_id"`
		Options   map[string]string `json:"options"`
		Quantity  *int              `json:"quantity"`
	}

	QuantityRequest struct {
		Quantity int `json:"quantity"`
	}

	ShippingRate struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
		Amount      int64  `json:"amount"`
		Currency    string `json:"currency"`
	}

	Quote struct {
		Cart         Cart          `json:"cart"`
		Weight       float64       `json:"weight"`
		Shipping     *ShippingRate `json:"shipping"`
		Total        int64         `json:"total"`
		TotalDisplay string        `json:"total_display"`
	}

	CheckoutRequest struct {
		ShippingRateID string `json:"shipping_rate_id"`
	}

	CheckoutSession struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
)

func toRecurring(r *domain.Recurring) *Recurring {
	if r == nil {
		return nil
	}
	return &Recurring{Interval: r.Interval, IntervalCount: r.IntervalCount}
}

func toPrice(p domain.Price) Price {
	v := Price{
		ID:         p.ID,
		ProductID:  p.ProductID,
		Currency:   p.Currency,
		UnitAmount: p.UnitAmount,
		Type:       string(p.Type),
		Recurring:  toRecurring(p.Recurring),
	}
	if p.UnitAmount != nil {
		v.Display = pricing.FormatAmount(*p.UnitAmount)
	}
	return v
}

func toPricePtr(p *domain.Price) *Price {
	if p == nil {
		return nil
	}
	v := toPrice(*p)
	return &v
}

func toPrices(ps []domain.Price) []Price {
	vs := make([]Price, len(ps))
	for i := range ps {
		vs[i] = toPrice(ps[i])
	}
	return vs
}

func toProduct(p domain.Product) Product {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return Product{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Images:       images,
		DefaultPrice: toPricePtr(p.DefaultPrice),
		Prices:       toPrices(p.Prices),
		OptionNames:  p.OptionNames,
		Shippable:    p.Shippable,
	}
}

func toVariant(v domain.Variant) Variant {
	return Variant{
		ID:           v.ID,
		Name:         v.Name,
		Options:      v.Options,
		DefaultPrice: toPricePtr(v.DefaultPrice),
		Prices:       toPrices(v.Prices),
	}
}

func toVariants(vs []domain.Variant) []Variant {
	out := make([]Variant, len(vs))
	for i := range vs {
		out[i] = toVariant(vs[i])
	}
	return out
}

func toProductPage(p domain.ProductPage) ProductPage {
	options := make([]Option, len(p.Options))
	for i, o := range p.Options {
		options[i] = Option{Name: o.Name, Values: o.Values}
	}
	return ProductPage{
		Product:            toProduct(p.Product),
		Variants:           toVariants(p.Variants),
		Options:            options,
		DisplayPrice:       toPricePtr(p.DisplayPrice),
		PriceRange:         p.PriceRange,
		RecurringIntervals: toPrices(p.RecurringIntervals),
		ShouldHaveVariants: p.ShouldHaveVariants,
		CanAddToCart:       p.CanAddToCart,
	}
}

func toResolution(r domain.Resolution) Resolution {
	v := Resolution{
		Status:  string(r.Status),
		Matches: toVariants(r.Matches),
	}
	if r.Variant != nil {
		rv := toVariant(*r.Variant)
		v.Variant = &rv
	}
	return v
}

func toCart(s domain.CartSummary) Cart {
	items := make([]LineItem, len(s.Items))
	for i, it := range s.Items {
		items[i] = LineItem{
			PriceID:     it.ID,
			Quantity:    it.Quantity,
			Available:   it.IsAvailable(),
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Currency:    it.Currency,
			UnitAmount:  it.UnitAmount,
			Recurring:   toRecurring(it.Recurring),
		}
	}
	return Cart{
		ID:              s.ID,
		Items:           items,
		Subtotal:        s.Subtotal,
		SubtotalDisplay: pricing.FormatAmount(s.Subtotal),
		Ready:           s.Ready,
	}
}

func toQuote(q domain.Quote) Quote {
	v := Quote{
		Cart:         toCart(q.Cart),
		Weight:       q.Weight,
		Total:        q.Total,
		TotalDisplay: pricing.FormatAmount(q.Total),
	}
	if q.Shipping != nil {
		v.Shipping = &ShippingRate{
			ID:          q.Shipping.ID,
			DisplayName: q.Shipping.DisplayName,
			Amount:      q.Shipping.Amount,
			Currency:    q.Shipping.Currency,
		}
	}
	return v
}
