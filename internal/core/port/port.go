package port

import (
	"context"

	"github.com/niksmo/storefront/internal/core/domain"
)

type (
	runner interface {
		Run(context.Context, context.CancelFunc)
	}

	closer interface {
		Close()
	}
)

// Inbound ports.

type CatalogQuerier interface {
	ProductPage(ctx context.Context, productID string) (domain.ProductPage, error)
	ResolveSelection(
		ctx context.Context, productID string, selection domain.OptionMap,
	) (domain.Resolution, error)
}

type CartManager interface {
	New(ctx context.Context) (domain.CartSummary, error)
	Get(ctx context.Context, cartID string) (domain.CartSummary, error)
	Add(
		ctx context.Context,
		cartID, productID string,
		selection domain.OptionMap,
		quantity int,
	) (domain.CartSummary, error)
	SetQuantity(
		ctx context.Context, cartID, priceID string, quantity int,
	) (domain.CartSummary, error)
	Remove(ctx context.Context, cartID, priceID string) (domain.CartSummary, error)
	Clear(ctx context.Context, cartID string) error
	Refresh(ctx context.Context, cartID string) (domain.CartSummary, error)
}

type CheckoutManager interface {
	Quote(ctx context.Context, cartID string) (domain.Quote, error)
	Checkout(
		ctx context.Context, cartID, shippingRateID string,
	) (domain.CheckoutSession, error)
}

type WebhookReceiver interface {
	ReceiveWebhook(ctx context.Context, payload []byte, signature string) error
}

type CatalogChangesApplier interface {
	ApplyCatalogChanges(ctx context.Context, changes []domain.CatalogChange) error
}

// Outbound ports.

type CatalogReader interface {
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	ListVariants(ctx context.Context, parentID string) ([]domain.Variant, error)
	ListPrices(ctx context.Context, productID string) ([]domain.Price, error)
	GetPrice(ctx context.Context, priceID string) (domain.Price, error)
	CombinedWeight(ctx context.Context, productIDs []string) (float64, error)
	ListShippingRates(ctx context.Context) ([]domain.ShippingRate, error)
}

type CartStore interface {
	LoadCart(ctx context.Context, cartID string) ([]domain.LineItem, error)
	SaveCart(ctx context.Context, cartID string, items []domain.LineItem) error
	DeleteCart(ctx context.Context, cartID string) error
	// CartsReferencing lists carts holding an entry with the price or
	// product id.
	CartsReferencing(ctx context.Context, ref string) ([]string, error)
	// FlagUnavailable marks the matching entries of one cart and returns
	// the number of entries that changed.
	FlagUnavailable(ctx context.Context, cartID, ref string) (int, error)
}

type CheckoutSessionCreator interface {
	CreateCheckoutSession(
		ctx context.Context, req domain.CheckoutRequest,
	) (domain.CheckoutSession, error)
}

type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (domain.WebhookEvent, error)
}

type CatalogChangeProducer interface {
	ProduceCatalogChange(ctx context.Context, change domain.CatalogChange) error
}

type AvailabilityView interface {
	// Availability returns the latest known availability of a price or
	// product id. known is false when no change was recorded for ref.
	Availability(ref string) (available, known bool, err error)
}

type AvailabilityProcessor interface {
	runner
	closer
}

type CatalogChangesConsumer interface {
	runner
	closer
}
