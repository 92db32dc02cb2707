package httphandler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/niksmo/storefront/internal/adapter/httphandler"
	"github.com/niksmo/storefront/internal/core/cart"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) ProductPage(ctx context.Context, productID string) (domain.ProductPage, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(domain.ProductPage), args.Error(1)
}

func (m *MockCatalog) ResolveSelection(
	ctx context.Context, productID string, selection domain.OptionMap,
) (domain.Resolution, error) {
	args := m.Called(ctx, productID, selection)
	return args.Get(0).(domain.Resolution), args.Error(1)
}

type MockCarts struct {
	mock.Mock
}

func (m *MockCarts) New(ctx context.Context) (domain.CartSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.CartSummary), args.Error(1)
}

func (m *MockCarts) Get(ctx context.Context, cartID string) (domain.CartSummary, error) {
	args := m.Called(ctx, cartID)
	return args.Get(0).(domain.CartSummary), args.Error(1)
}

func (m *MockCarts) Add(
	ctx context.Context, cartID, productID string, selection domain.OptionMap, quantity int,
) (domain.CartSummary, error) {
	args := m.Called(ctx, cartID, productID, selection, quantity)
	return args.Get(0).(domain.CartSummary), args.Error(1)
}

func (m *MockCarts) SetQuantity(
	ctx context.Context, cartID, priceID string, quantity int,
) (domain.CartSummary, error) {
	args := m.Called(ctx, cartID, priceID, quantity)
	return args.Get(0).(domain.CartSummary), args.Error(1)
}

func (m *MockCarts) Remove(ctx context.Context, cartID, priceID string) (domain.CartSummary, error) {
	args := m.Called(ctx, cartID, priceID)
	return args.Get(0).(domain.CartSummary), args.Error(1)
}

func (m *MockCarts) Clear(ctx context.Context, cartID string) error {
	return m.Called(ctx, cartID).Error(0)
}

func (m *MockCarts) Refresh(ctx context.Context, cartID string) (domain.CartSummary, error) {
	args := m.Called(ctx, cartID)
	return args.Get(0).(domain.CartSummary), args.Error(1)
}

type MockCheckout struct {
	mock.Mock
}

func (m *MockCheckout) Quote(ctx context.Context, cartID string) (domain.Quote, error) {
	args := m.Called(ctx, cartID)
	return args.Get(0).(domain.Quote), args.Error(1)
}

func (m *MockCheckout) Checkout(
	ctx context.Context, cartID, shippingRateID string,
) (domain.CheckoutSession, error) {
	args := m.Called(ctx, cartID, shippingRateID)
	return args.Get(0).(domain.CheckoutSession), args.Error(1)
}

type MockReceiver struct {
	mock.Mock
}

func (m *MockReceiver) ReceiveWebhook(ctx context.Context, payload []byte, signature string) error {
	return m.Called(ctx, payload, signature).Error(0)
}

type fixture struct {
	catalog  *MockCatalog
	carts    *MockCarts
	checkout *MockCheckout
	receiver *MockReceiver
	handler  http.Handler
}

func newFixture() fixture {
	f := fixture{
		catalog:  new(MockCatalog),
		carts:    new(MockCarts),
		checkout: new(MockCheckout),
		receiver: new(MockReceiver),
	}
	mux := http.NewServeMux()
	httphandler.RegisterProducts(mux, f.catalog)
	httphandler.RegisterCarts(mux, f.carts, f.checkout)
	httphandler.RegisterWebhooks(mux, f.receiver)
	f.handler = httphandler.AllowJSON(mux)
	return f
}

func (f fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

func amount(v int64) *int64 { return &v }

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestAllowJSON(t *testing.T) {
	f := newFixture()
	r := httptest.NewRequest(http.MethodPost, "/v1/carts/c1/items", strings.NewReader("product_id=1"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	f.carts.AssertNotCalled(t, "Add")
}

func TestGetProduct(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		f := newFixture()
		price := domain.Price{ID: "price_1", ProductID: "prod_1", Currency: "usd", UnitAmount: amount(500), Type: domain.PriceOneTime}
		f.catalog.On("ProductPage", mock.Anything, "prod_1").Return(domain.ProductPage{
			Product:      domain.Product{ID: "prod_1", Name: "Mug", Prices: []domain.Price{price}},
			DisplayPrice: &price,
			PriceRange:   "$5.00",
			CanAddToCart: true,
		}, nil)

		w := f.do(http.MethodGet, "/v1/products/prod_1", "")
		require.Equal(t, http.StatusOK, w.Code)
		page := decode[httphandler.ProductPage](t, w)
		assert.Equal(t, "Mug", page.Product.Name)
		require.NotNil(t, page.DisplayPrice)
		assert.Equal(t, "$5.00", page.DisplayPrice.Display)
		assert.True(t, page.CanAddToCart)
		assert.Empty(t, page.Variants)
	})

	t.Run("NotFound", func(t *testing.T) {
		f := newFixture()
		f.catalog.On("ProductPage", mock.Anything, "prod_x").
			Return(domain.ProductPage{}, fmt.Errorf("CatalogService.ProductPage: %w", domain.ErrNotFound))

		w := f.do(http.MethodGet, "/v1/products/prod_x", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not found", decode[map[string]string](t, w)["error"])
	})
}

func TestPostSelection(t *testing.T) {
	f := newFixture()
	red := domain.Variant{ID: "prod_red", Name: "Shirt Red", Options: domain.OptionMap{"color": "Red"}}
	f.catalog.On("ResolveSelection", mock.Anything, "prod_1", domain.OptionMap{"color": "Red"}).
		Return(domain.Resolution{Status: domain.Resolved, Matches: []domain.Variant{red}, Variant: &red}, nil)

	w := f.do(http.MethodPost, "/v1/products/prod_1/selection", `{"options":{"color":"Red"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[httphandler.Resolution](t, w)
	assert.Equal(t, "resolved", res.Status)
	require.NotNil(t, res.Variant)
	assert.Equal(t, "prod_red", res.Variant.ID)

	w = f.do(http.MethodPost, "/v1/products/prod_1/selection", `{"options":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCarts(t *testing.T) {
	summary := domain.CartSummary{
		ID: "c1",
		Items: []domain.LineItem{
			{ID: "price_1", Quantity: 2, ProductID: "prod_1", ProductName: "Mug", Currency: "usd", UnitAmount: amount(500)},
		},
		Subtotal: 1000,
		Ready:    true,
	}

	t.Run("New", func(t *testing.T) {
		f := newFixture()
		f.carts.On("New", mock.Anything).Return(domain.CartSummary{ID: "c1"}, nil)

		w := f.do(http.MethodPost, "/v1/carts", "")
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "c1", decode[httphandler.NewCart](t, w).CartID)
	})

	t.Run("Get", func(t *testing.T) {
		f := newFixture()
		f.carts.On("Get", mock.Anything, "c1").Return(summary, nil)

		w := f.do(http.MethodGet, "/v1/carts/c1", "")
		require.Equal(t, http.StatusOK, w.Code)
		c := decode[httphandler.Cart](t, w)
		assert.Equal(t, "$10.00", c.SubtotalDisplay)
		require.Len(t, c.Items, 1)
		assert.Equal(t, "price_1", c.Items[0].PriceID)
		assert.True(t, c.Items[0].Available)
	})

	t.Run("AddDefaultQuantity", func(t *testing.T) {
		f := newFixture()
		f.carts.On("Add", mock.Anything, "c1", "prod_1", domain.OptionMap{"size": "M"}, 1).
			Return(summary, nil)

		w := f.do(http.MethodPost, "/v1/carts/c1/items", `{"product_id":"prod_1","options":{"size":"M"}}`)
		assert.Equal(t, http.StatusOK, w.Code)
		f.carts.AssertExpectations(t)
	})

	t.Run("AddAmbiguous", func(t *testing.T) {
		f := newFixture()
		f.carts.On("Add", mock.Anything, "c1", "prod_1", mock.Anything, 3).
			Return(domain.CartSummary{}, fmt.Errorf("CartService.Add: %w", service.ErrAmbiguousSelection))

		w := f.do(http.MethodPost, "/v1/carts/c1/items", `{"product_id":"prod_1","quantity":3}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, service.ErrAmbiguousSelection.Error(), decode[map[string]string](t, w)["error"])
	})

	t.Run("SetQuantityStale", func(t *testing.T) {
		f := newFixture()
		f.carts.On("SetQuantity", mock.Anything, "c1", "price_1", 4).
			Return(domain.CartSummary{}, fmt.Errorf("CartService.SetQuantity: %w", service.ErrStaleUpdate))

		w := f.do(http.MethodPatch, "/v1/carts/c1/items/price_1", `{"quantity":4}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("RemoveMissing", func(t *testing.T) {
		f := newFixture()
		f.carts.On("Remove", mock.Anything, "c1", "price_9").
			Return(domain.CartSummary{}, fmt.Errorf("CartService.Remove: %w", cart.ErrItemNotFound))

		w := f.do(http.MethodDelete, "/v1/carts/c1/items/price_9", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Clear", func(t *testing.T) {
		f := newFixture()
		f.carts.On("Clear", mock.Anything, "c1").Return(nil)

		w := f.do(http.MethodDelete, "/v1/carts/c1", "")
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("RefreshStoreDown", func(t *testing.T) {
		f := newFixture()
		f.carts.On("Refresh", mock.Anything, "c1").
			Return(domain.CartSummary{}, errors.New("connection refused"))

		w := f.do(http.MethodPost, "/v1/carts/c1/refresh", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})
}

func TestQuote(t *testing.T) {
	f := newFixture()
	f.checkout.On("Quote", mock.Anything, "c1").Return(domain.Quote{
		Cart:     domain.CartSummary{ID: "c1", Subtotal: 1000},
		Weight:   1.5,
		Shipping: &domain.ShippingRate{ID: "shr_1", DisplayName: "Ground", Amount: 499, Currency: "usd"},
		Total:    1499,
	}, nil)

	w := f.do(http.MethodGet, "/v1/carts/c1/quote", "")
	require.Equal(t, http.StatusOK, w.Code)
	q := decode[httphandler.Quote](t, w)
	assert.Equal(t, int64(1499), q.Total)
	assert.Equal(t, "$14.99", q.TotalDisplay)
	require.NotNil(t, q.Shipping)
	assert.Equal(t, "shr_1", q.Shipping.ID)
}

func TestCheckout(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := newFixture()
		f.checkout.On("Checkout", mock.Anything, "c1", "shr_1").
			Return(domain.CheckoutSession{ID: "cs_1", URL: "https://pay.example/cs_1"}, nil)

		w := f.do(http.MethodPost, "/v1/carts/c1/checkout", `{"shipping_rate_id":"shr_1"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://pay.example/cs_1", decode[httphandler.CheckoutSession](t, w).URL)
	})

	t.Run("EmptyBody", func(t *testing.T) {
		f := newFixture()
		f.checkout.On("Checkout", mock.Anything, "c1", "").
			Return(domain.CheckoutSession{ID: "cs_1", URL: "https://pay.example/cs_1"}, nil)

		w := f.do(http.MethodPost, "/v1/carts/c1/checkout", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("NotReady", func(t *testing.T) {
		f := newFixture()
		notReady := fmt.Errorf("%w: Mug no longer available", service.ErrCartNotReady)
		f.checkout.On("Checkout", mock.Anything, "c1", "").
			Return(domain.CheckoutSession{}, fmt.Errorf("CheckoutService.Checkout: %w", notReady))

		w := f.do(http.MethodPost, "/v1/carts/c1/checkout", "")
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t,
			"cart is not ready for checkout: Mug no longer available",
			decode[map[string]string](t, w)["error"],
		)
	})
}

func TestWebhook(t *testing.T) {
	payload := `{"id":"evt_1","type":"product.updated"}`

	t.Run("Accepted", func(t *testing.T) {
		f := newFixture()
		f.receiver.On("ReceiveWebhook", mock.Anything, []byte(payload), "t=1,v1=abc").Return(nil)

		r := httptest.NewRequest(http.MethodPost, "/v1/webhooks/commerce", strings.NewReader(payload))
		r.Header.Set("Content-Type", "application/json; charset=utf-8")
		r.Header.Set("Stripe-Signature", "t=1,v1=abc")
		w := httptest.NewRecorder()
		f.handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		f.receiver.AssertExpectations(t)
	})

	t.Run("BadSignature", func(t *testing.T) {
		f := newFixture()
		f.receiver.On("ReceiveWebhook", mock.Anything, mock.Anything, "").
			Return(fmt.Errorf("EventsService.ReceiveWebhook: %w: bad signature", service.ErrInvalidWebhook))

		w := f.do(http.MethodPost, "/v1/webhooks/commerce", payload)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
