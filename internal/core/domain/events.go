package domain

import "time"

type CatalogRefKind string

const (
	RefPrice   CatalogRefKind = "price"
	RefProduct CatalogRefKind = "product"
)

// CatalogChange is the latest known availability of a price or product.
type CatalogChange struct {
	Ref        string
	Kind       CatalogRefKind
	ProductID  string
	Available  bool
	OccurredAt time.Time
}

type WebhookEventType string

const (
	WebhookCatalogChanged    WebhookEventType = "catalog_changed"
	WebhookCheckoutCompleted WebhookEventType = "checkout_completed"
	WebhookIgnored           WebhookEventType = "ignored"
)

type WebhookEvent struct {
	ID            string
	Type          WebhookEventType
	CatalogChange CatalogChange
	CartID        string
}
