package commerce

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/stripe/stripe-go/v81"
)

const (
	successPath = "/confirmation"
	cancelPath  = "/cart"
)

// CreateCheckoutSession opens a hosted payment page for the request.
func (c Client) CreateCheckoutSession(
	ctx context.Context, req domain.CheckoutRequest,
) (domain.CheckoutSession, error) {
	const op = "Client.CreateCheckoutSession"

	params := c.checkoutSessionParams(req)
	params.Context = ctx

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return domain.CheckoutSession{}, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	slog.Debug("checkout session opened", "op", op, "sessionID", s.ID, "cartID", req.CartID)
	return domain.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (c Client) checkoutSessionParams(req domain.CheckoutRequest) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(c.storefrontURL + successPath),
		CancelURL:          stripe.String(c.storefrontURL + cancelPath),
		AutomaticTax: &stripe.CheckoutSessionAutomaticTaxParams{
			Enabled: stripe.Bool(true),
		},
	}

	if req.CartID != "" {
		params.ClientReferenceID = stripe.String(req.CartID)
	}

	for _, it := range req.Items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(it.PriceID),
			Quantity: stripe.Int64(int64(it.Quantity)),
		})
	}

	if req.ShippingRateID != "" {
		params.ShippingOptions = []*stripe.CheckoutSessionShippingOptionParams{
			{ShippingRate: stripe.String(req.ShippingRateID)},
		}
	}
	return params
}
