package service_test

import (
	"context"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/stretchr/testify/mock"
)

type MockCatalogReader struct {
	mock.Mock
}

func (m *MockCatalogReader) GetProduct(
	ctx context.Context, productID string,
) (domain.Product, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockCatalogReader) ListVariants(
	ctx context.Context, parentID string,
) ([]domain.Variant, error) {
	args := m.Called(ctx, parentID)
	return args.Get(0).([]domain.Variant), args.Error(1)
}

func (m *MockCatalogReader) ListPrices(
	ctx context.Context, productID string,
) ([]domain.Price, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).([]domain.Price), args.Error(1)
}

func (m *MockCatalogReader) GetPrice(
	ctx context.Context, priceID string,
) (domain.Price, error) {
	args := m.Called(ctx, priceID)
	return args.Get(0).(domain.Price), args.Error(1)
}

func (m *MockCatalogReader) CombinedWeight(
	ctx context.Context, productIDs []string,
) (float64, error) {
	args := m.Called(ctx, productIDs)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockCatalogReader) ListShippingRates(
	ctx context.Context,
) ([]domain.ShippingRate, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.ShippingRate), args.Error(1)
}

// MemCartStore keeps carts in a map. SaveErr fails the next save.
type MemCartStore struct {
	carts   map[string][]domain.LineItem
	SaveErr error
	saves   int
}

func NewMemCartStore() *MemCartStore {
	return &MemCartStore{carts: make(map[string][]domain.LineItem)}
}

func (s *MemCartStore) LoadCart(
	ctx context.Context, cartID string,
) ([]domain.LineItem, error) {
	return append([]domain.LineItem(nil), s.carts[cartID]...), nil
}

func (s *MemCartStore) SaveCart(
	ctx context.Context, cartID string, items []domain.LineItem,
) error {
	if s.SaveErr != nil {
		err := s.SaveErr
		s.SaveErr = nil
		return err
	}
	s.saves++
	s.carts[cartID] = append([]domain.LineItem(nil), items...)
	return nil
}

func (s *MemCartStore) DeleteCart(ctx context.Context, cartID string) error {
	delete(s.carts, cartID)
	return nil
}

func (s *MemCartStore) CartsReferencing(ctx context.Context, ref string) ([]string, error) {
	var ids []string
	for id, items := range s.carts {
		for _, it := range items {
			if it.ID == ref || it.ProductID == ref {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids, nil
}

func (s *MemCartStore) FlagUnavailable(
	ctx context.Context, cartID, ref string,
) (int, error) {
	items := s.carts[cartID]
	var n int
	for i := range items {
		if items[i].ID != ref && items[i].ProductID != ref {
			continue
		}
		if !items[i].IsAvailable() {
			continue
		}
		f := false
		items[i].Available = &f
		n++
	}
	return n, nil
}

type MockCheckoutSessionCreator struct {
	mock.Mock
}

func (m *MockCheckoutSessionCreator) CreateCheckoutSession(
	ctx context.Context, req domain.CheckoutRequest,
) (domain.CheckoutSession, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.CheckoutSession), args.Error(1)
}

type MockWebhookParser struct {
	mock.Mock
}

func (m *MockWebhookParser) ParseWebhook(
	payload []byte, signature string,
) (domain.WebhookEvent, error) {
	args := m.Called(payload, signature)
	return args.Get(0).(domain.WebhookEvent), args.Error(1)
}

type MockCatalogChangeProducer struct {
	mock.Mock
}

func (m *MockCatalogChangeProducer) ProduceCatalogChange(
	ctx context.Context, change domain.CatalogChange,
) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

type MockAvailabilityView struct {
	mock.Mock
}

func (m *MockAvailabilityView) Availability(ref string) (bool, bool, error) {
	args := m.Called(ref)
	return args.Bool(0), args.Bool(1), args.Error(2)
}

func amount(v int64) *int64 {
	return &v
}

func oneTime(id, productID string, minor int64) domain.Price {
	return domain.Price{
		ID:         id,
		ProductID:  productID,
		Currency:   "usd",
		UnitAmount: amount(minor),
		Type:       domain.PriceOneTime,
		Active:     true,
	}
}
