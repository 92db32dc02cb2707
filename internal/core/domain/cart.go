package domain

// LineItem is one cart entry. ID is the price id.
type LineItem struct {
	ID          string
	Quantity    int
	Available   *bool
	ProductID   string
	ProductName string
	Currency    string
	UnitAmount  *int64
	Recurring   *Recurring
}

// IsAvailable reports false only for entries explicitly flagged stale.
func (li LineItem) IsAvailable() bool {
	return li.Available == nil || *li.Available
}

type CartSummary struct {
	ID       string
	Items    []LineItem
	Subtotal int64
	Ready    bool
}
