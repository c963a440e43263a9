package core

import (
	"regexp"
	"strings"
	"time"
)

// DefaultLabelColor is used when a label is created without a color.
const DefaultLabelColor = "#E1BEE7"

// LabelPalette lists the predefined label colors offered to users.
var LabelPalette = []string{
	"#E1BEE7", // Lavender
	"#FFB6C1", // Light Pink
	"#98FB98", // Pale Green
	"#87CEEB", // Sky Blue
	"#DDA0DD", // Plum
	"#F0E68C", // Khaki
	"#FFA07A", // Light Salmon
	"#20B2AA", // Light Sea Green
}

type (
	// Label is a named, colored tag attachable to shopping items.
	Label struct {
		ID    int64
		Name  string
		Color string // Hex RGB, e.g. "#E1BEE7"
	}

	// ShoppingItem is a single entry on the shopping list. Labels holds label
	// names by value; it is not a foreign key.
	ShoppingItem struct {
		ID             int64
		Name           string
		Quantity       int
		EstimatedPrice Money
		ActualPrice    *Money // nil while unknown, even when purchased
		Labels         LabelSet
		IsPurchased    bool
		PurchasedAt    *time.Time
		CreatedAt      time.Time
	}
)

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

const maxNameLength = 200

// MaxQuantity bounds ShoppingItem.Quantity.
const MaxQuantity = 1_000_000

// Validate checks the label fields accepted at the store boundary.
func (l Label) Validate() error {
	name := strings.TrimSpace(l.Name)
	if name == "" {
		return &ValidationError{Field: "name", Reason: "cannot be empty"}
	}
	if name != l.Name {
		return &ValidationError{Field: "name", Reason: "must not have leading or trailing spaces"}
	}
	if strings.Contains(l.Name, LabelDelimiter) {
		return &ValidationError{Field: "name", Reason: "must not contain " + LabelDelimiter}
	}
	if len(l.Name) > maxNameLength {
		return &ValidationError{Field: "name", Reason: "too long (max 200 characters)"}
	}
	if !hexColor.MatchString(l.Color) {
		return &ValidationError{Field: "color", Reason: "must be a hex RGB color like #A1B2C3"}
	}
	return nil
}

// Validate checks the item fields accepted at the store boundary.
func (i ShoppingItem) Validate() error {
	if len(strings.TrimSpace(i.Name)) == 0 {
		return &ValidationError{Field: "name", Reason: "cannot be empty"}
	}
	if len(i.Name) > maxNameLength {
		return &ValidationError{Field: "name", Reason: "too long (max 200 characters)"}
	}
	if i.Quantity < 1 {
		return &ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	if i.Quantity > MaxQuantity {
		return &ValidationError{Field: "quantity", Reason: "must be at most 1000000"}
	}
	if i.EstimatedPrice.Cents < 0 {
		return &ValidationError{Field: "estimated_price", Reason: "must not be negative"}
	}
	if i.EstimatedPrice.Cents > MaxPriceCents {
		return &ValidationError{Field: "estimated_price", Reason: "must be at most 1000000000.00"}
	}
	if i.ActualPrice != nil && i.ActualPrice.Cents <= 0 {
		return &ValidationError{Field: "actual_price", Reason: "must be positive"}
	}
	if i.ActualPrice != nil && i.ActualPrice.Cents > MaxPriceCents {
		return &ValidationError{Field: "actual_price", Reason: "must be at most 1000000000.00"}
	}
	for _, name := range i.Labels {
		if strings.Contains(name, LabelDelimiter) {
			return &ValidationError{Field: "labels", Reason: "label names must not contain " + LabelDelimiter}
		}
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (i ShoppingItem) Clone() ShoppingItem {
	out := i
	out.Labels = i.Labels.Clone()
	if i.ActualPrice != nil {
		p := *i.ActualPrice
		out.ActualPrice = &p
	}
	if i.PurchasedAt != nil {
		t := *i.PurchasedAt
		out.PurchasedAt = &t
	}
	return out
}

// LineEstimate is the estimated price times the quantity.
func (i ShoppingItem) LineEstimate() Money {
	return i.EstimatedPrice.Times(i.Quantity)
}

// LineActual is the actual price times the quantity, or zero when the item is
// not purchased or its price is unknown.
func (i ShoppingItem) LineActual() Money {
	if !i.IsPurchased || i.ActualPrice == nil {
		return Money{}
	}
	return i.ActualPrice.Times(i.Quantity)
}
