package commerce

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

// ParseWebhook verifies the signature header and maps the event.
// Events the storefront does not react to come back as WebhookIgnored.
func (c Client) ParseWebhook(payload []byte, signature string) (domain.WebhookEvent, error) {
	const op = "Client.ParseWebhook"

	event, err := webhook.ConstructEventWithOptions(
		payload, signature, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("%s: %w", op, err)
	}

	out, err := toWebhookEvent(event)
	if err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func toWebhookEvent(event stripe.Event) (domain.WebhookEvent, error) {
	out := domain.WebhookEvent{ID: event.ID, Type: domain.WebhookIgnored}
	occurredAt := time.Unix(event.Created, 0).UTC()

	switch event.Type {
	case stripe.EventTypeProductCreated,
		stripe.EventTypeProductUpdated,
		stripe.EventTypeProductDeleted:
		var p stripe.Product
		if err := unmarshalObject(event, &p); err != nil {
			return domain.WebhookEvent{}, err
		}
		out.Type = domain.WebhookCatalogChanged
		out.CatalogChange = domain.CatalogChange{
			Ref:        p.ID,
			Kind:       domain.RefProduct,
			ProductID:  p.ID,
			Available:  event.Type != stripe.EventTypeProductDeleted && productActive(&p),
			OccurredAt: occurredAt,
		}

	case stripe.EventTypePriceCreated,
		stripe.EventTypePriceUpdated,
		stripe.EventTypePriceDeleted:
		var p stripe.Price
		if err := unmarshalObject(event, &p); err != nil {
			return domain.WebhookEvent{}, err
		}
		price := toPrice(&p)
		out.Type = domain.WebhookCatalogChanged
		out.CatalogChange = domain.CatalogChange{
			Ref:        price.ID,
			Kind:       domain.RefPrice,
			ProductID:  price.ProductID,
			Available:  event.Type != stripe.EventTypePriceDeleted && price.Active,
			OccurredAt: occurredAt,
		}

	case stripe.EventTypeCheckoutSessionCompleted:
		var s stripe.CheckoutSession
		if err := unmarshalObject(event, &s); err != nil {
			return domain.WebhookEvent{}, err
		}
		out.Type = domain.WebhookCheckoutCompleted
		out.CartID = s.ClientReferenceID
	}
	return out, nil
}

func unmarshalObject(event stripe.Event, v any) error {
	if event.Data == nil {
		return fmt.Errorf("event %s has no data", event.ID)
	}
	if err := json.Unmarshal(event.Data.Raw, v); err != nil {
		return fmt.Errorf("failed to decode %s object: %w", event.Type, err)
	}
	return nil
}
