package domain

type ShippingRate struct {
	ID          string
	DisplayName string
	Amount      int64
	Currency    string
	MinWeight   float64
	MaxWeight   float64
}

type (
	CheckoutRequest struct {
		CartID         string
		Items          []CheckoutLine
		ShippingRateID string
	}

	CheckoutLine struct {
		PriceID  string
		Quantity int
	}

	CheckoutSession struct {
		ID  string
		URL string
	}
)

type Quote struct {
	Cart     CartSummary
	Weight   float64
	Shipping *ShippingRate
	Total    int64
}
