// Package cart keeps a list of line items with at most one entry per price.
package cart

import (
	"errors"
	"slices"

	"github.com/niksmo/storefront/internal/core/domain"
)

const minQuantity = 1

var ErrItemNotFound = errors.New("line item not found")

// Reconcile merges incoming into current and returns a new slice.
//
// An entry with the same price id gets its quantity increased by the
// incoming quantity. Otherwise incoming is appended. current is not mutated.
func Reconcile(current []domain.LineItem, incoming domain.LineItem) []domain.LineItem {
	incoming.Quantity = floorQuantity(incoming.Quantity)

	out := slices.Clone(current)
	for i := range out {
		if out[i].ID == incoming.ID {
			out[i].Quantity += incoming.Quantity
			return out
		}
	}
	return append(out, incoming)
}

func floorQuantity(q int) int {
	return max(q, minQuantity)
}

type Cart struct {
	ID    string
	Items []domain.LineItem
}

func New(id string, items []domain.LineItem) *Cart {
	c := &Cart{ID: id}
	for _, it := range items {
		c.Add(it)
	}
	return c
}

func (c *Cart) Add(item domain.LineItem) {
	c.Items = Reconcile(c.Items, item)
}

// SetQuantity replaces the quantity of the entry and returns the stored
// value. A quantity below one is rejected and stored as one.
func (c *Cart) SetQuantity(id string, quantity int) (int, error) {
	i := c.index(id)
	if i < 0 {
		return 0, ErrItemNotFound
	}
	c.Items[i].Quantity = floorQuantity(quantity)
	return c.Items[i].Quantity, nil
}

// Remove drops the entry with the price id.
func (c *Cart) Remove(id string) error {
	i := c.index(id)
	if i < 0 {
		return ErrItemNotFound
	}
	c.Items = slices.Delete(c.Items, i, i+1)
	return nil
}

func (c *Cart) Clear() {
	c.Items = nil
}

// FlagUnavailable marks entries whose price or product id equals ref.
// Entries are kept so the blocking item can still be shown.
func (c *Cart) FlagUnavailable(ref string) int {
	var n int
	for i := range c.Items {
		if c.Items[i].ID != ref && c.Items[i].ProductID != ref {
			continue
		}
		if !c.Items[i].IsAvailable() {
			continue
		}
		c.Items[i].Available = flag(false)
		n++
	}
	return n
}

// SetAvailability records the availability of the entry with the price id.
func (c *Cart) SetAvailability(id string, available bool) error {
	i := c.index(id)
	if i < 0 {
		return ErrItemNotFound
	}
	c.Items[i].Available = flag(available)
	return nil
}

// Ready reports whether the cart may go to checkout.
func (c *Cart) Ready() bool {
	if len(c.Items) == 0 {
		return false
	}
	for _, it := range c.Items {
		if !it.IsAvailable() {
			return false
		}
	}
	return true
}

func (c *Cart) Unavailable() []domain.LineItem {
	var out []domain.LineItem
	for _, it := range c.Items {
		if !it.IsAvailable() {
			out = append(out, it)
		}
	}
	return out
}

// Subtotal sums unit amount times quantity. Items without an amount count
// as zero.
func (c *Cart) Subtotal() int64 {
	var sum int64
	for _, it := range c.Items {
		if it.UnitAmount == nil {
			continue
		}
		sum += *it.UnitAmount * int64(it.Quantity)
	}
	return sum
}

func (c *Cart) ProductIDs() []string {
	var ids []string
	for _, it := range c.Items {
		if it.ProductID == "" || slices.Contains(ids, it.ProductID) {
			continue
		}
		ids = append(ids, it.ProductID)
	}
	return ids
}

func (c *Cart) Summary() domain.CartSummary {
	return domain.CartSummary{
		ID:       c.ID,
		Items:    slices.Clone(c.Items),
		Subtotal: c.Subtotal(),
		Ready:    c.Ready(),
	}
}

func (c *Cart) index(id string) int {
	return slices.IndexFunc(c.Items, func(it domain.LineItem) bool {
		return it.ID == id
	})
}

func flag(v bool) *bool {
	return &v
}
