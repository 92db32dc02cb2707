package domain

type PriceType string

const (
	PriceOneTime   PriceType = "one_time"
	PriceRecurring PriceType = "recurring"
)

type (
	Price struct {
		ID         string
		ProductID  string
		Currency   string
		UnitAmount *int64
		Type       PriceType
		Recurring  *Recurring
		Active     bool
	}

	Recurring struct {
		Interval      string
		IntervalCount int64
	}
)

func (p Price) IsRecurring() bool {
	return p.Type == PriceRecurring
}

// OptionMap maps an option name to the chosen value, e.g. {color: Red}.
type OptionMap map[string]string

type (
	Product struct {
		ID           string
		Name         string
		Description  string
		Active       bool
		Images       []string
		DefaultPrice *Price
		Prices       []Price
		ParentID     string
		OptionNames  []string
		Weight       float64
		Shippable    bool
	}

	Variant struct {
		ID           string
		Name         string
		Options      OptionMap
		DefaultPrice *Price
		Prices       []Price
		Active       bool
	}

	Option struct {
		Name   string
		Values []string
	}
)

// ProductPage is the shaped view of a product with its variants.
type ProductPage struct {
	Product            Product
	Variants           []Variant
	Options            []Option
	DisplayPrice       *Price
	PriceRange         string
	RecurringIntervals []Price
	ShouldHaveVariants bool
	CanAddToCart       bool
}

type ResolutionStatus string

const (
	Resolved  ResolutionStatus = "resolved"
	Ambiguous ResolutionStatus = "ambiguous"
	NoMatch   ResolutionStatus = "no_match"
)

type Resolution struct {
	Status  ResolutionStatus
	Matches []Variant
	Variant *Variant
}
