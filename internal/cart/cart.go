// Package cart holds the cart line item model and the pure functions the cart
// store applies on every mutation. None of the functions modify their input:
// each returns a fresh slice, so a caller can swap the whole cart at once.
package cart

import (
	"slices"

	"github.com/shopspring/decimal"
)

// MaxQuantity is the largest quantity a single add or update may carry.
const MaxQuantity = 100

// Rating is the catalog's customer rating of a product.
type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// LineItem is one product entry in the cart.
// The JSON layout mirrors the catalog record plus the quantity.
type LineItem struct {
	ID          int             `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image"`
	Rating      *Rating         `json:"rating,omitempty"`
	Quantity    int             `json:"quantity"`
}

// Subtotal returns price × quantity of the line.
func (i LineItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Action is the outcome of planning an add.
type Action int

const (
	// ActionFetch means the product is not in the cart and must be resolved from the catalog.
	ActionFetch Action = iota
	// ActionIncrement means the product is already in the cart and only its quantity changes.
	ActionIncrement
)

func (a Action) String() string {
	switch a {
	case ActionIncrement:
		return "increment"
	default:
		return "fetch"
	}
}

// Plan decides how adding the product with the given id to items is carried out.
// Only an exact id match counts as existing.
func Plan(items []LineItem, id int) Action {
	if IndexOf(items, id) >= 0 {
		return ActionIncrement
	}
	return ActionFetch
}

// IndexOf returns the position of the line with the given id, or -1.
func IndexOf(items []LineItem, id int) int {
	return slices.IndexFunc(items, func(i LineItem) bool { return i.ID == id })
}

// Increment adds quantity to the line with the given id.
// Returns false and the items unchanged if there is no such line.
func Increment(items []LineItem, id, quantity int) ([]LineItem, bool) {
	idx := IndexOf(items, id)
	if idx < 0 {
		return items, false
	}
	next := slices.Clone(items)
	next[idx].Quantity += quantity
	return next, true
}

// Add merges item into items: an existing line with the same id gets the
// item's quantity added, otherwise the item is appended at the end.
func Add(items []LineItem, item LineItem) []LineItem {
	if next, ok := Increment(items, item.ID, item.Quantity); ok {
		return next
	}
	next := make([]LineItem, 0, len(items)+1)
	next = append(next, items...)
	return append(next, item)
}

// Remove drops the line with the given id. Removing an absent id is not an error;
// the second result reports whether anything was removed.
func Remove(items []LineItem, id int) ([]LineItem, bool) {
	idx := IndexOf(items, id)
	if idx < 0 {
		return items, false
	}
	return slices.Delete(slices.Clone(items), idx, idx+1), true
}

// SetQuantity replaces the quantity of the line with the given id.
func SetQuantity(items []LineItem, id, quantity int) ([]LineItem, bool) {
	idx := IndexOf(items, id)
	if idx < 0 {
		return items, false
	}
	next := slices.Clone(items)
	next[idx].Quantity = quantity
	return next, true
}

// Normalize merges lines sharing an id into the first one and clamps negative
// quantities to zero. Used on state read back from storage.
func Normalize(items []LineItem) []LineItem {
	next := make([]LineItem, 0, len(items))
	for _, item := range items {
		if item.Quantity < 0 {
			item.Quantity = 0
		}
		next = Add(next, item)
	}
	return next
}

// Total sums price × quantity over all lines. An empty cart totals zero.
func Total(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// FormatTotal renders a total the way it is displayed, rounded to two decimals.
func FormatTotal(total decimal.Decimal) string {
	return total.StringFixed(2)
}
