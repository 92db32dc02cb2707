package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

var (
	_ port.WebhookReceiver       = (*EventsService)(nil)
	_ port.CatalogChangesApplier = (*EventsService)(nil)
)

type unavailableFlagger interface {
	FlagUnavailable(ctx context.Context, ref string) (int, error)
	Clear(ctx context.Context, cartID string) error
}

// EventsService turns platform webhooks into catalog changes and applies
// consumed changes to stored carts.
type EventsService struct {
	parser   port.WebhookParser
	producer port.CatalogChangeProducer
	carts    unavailableFlagger
}

func NewEventsService(
	parser port.WebhookParser,
	producer port.CatalogChangeProducer,
	carts unavailableFlagger,
) EventsService {
	return EventsService{parser, producer, carts}
}

func (s EventsService) ReceiveWebhook(
	ctx context.Context, payload []byte, signature string,
) error {
	const op = "EventsService.ReceiveWebhook"
	log := slog.With("op", op)

	event, err := s.parser.ParseWebhook(payload, signature)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrInvalidWebhook, err)
	}

	switch event.Type {
	case domain.WebhookCatalogChanged:
		change := event.CatalogChange
		if err := s.producer.ProduceCatalogChange(ctx, change); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		log.Info("catalog change published",
			"eventID", event.ID,
			"ref", change.Ref,
			"kind", change.Kind,
			"available", change.Available,
		)
	case domain.WebhookCheckoutCompleted:
		if event.CartID == "" {
			log.Warn("completed checkout without cart reference", "eventID", event.ID)
			return nil
		}
		if err := s.carts.Clear(ctx, event.CartID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	default:
		log.Debug("event ignored", "eventID", event.ID)
	}
	return nil
}

// ApplyCatalogChanges flags stored entries that reference a price or
// product which became unavailable. Every change is attempted.
func (s EventsService) ApplyCatalogChanges(
	ctx context.Context, changes []domain.CatalogChange,
) error {
	const op = "EventsService.ApplyCatalogChanges"
	log := slog.With("op", op)

	var errs []error
	for _, c := range changes {
		if c.Available {
			continue
		}
		n, err := s.carts.FlagUnavailable(ctx, c.Ref)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if n != 0 {
			log.Info("cart items flagged", "ref", c.Ref, "kind", c.Kind, "count", n)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
