package core

import (
	"fmt"
	"sort"
	"strings"
)

// FilterMode selects how selected labels combine.
type FilterMode string

const (
	FilterAND FilterMode = "AND"
	FilterOR  FilterMode = "OR"
)

// ParseFilterMode accepts "and"/"or" in any case.
func ParseFilterMode(s string) (FilterMode, error) {
	switch FilterMode(strings.ToUpper(strings.TrimSpace(s))) {
	case FilterAND:
		return FilterAND, nil
	case FilterOR:
		return FilterOR, nil
	default:
		return "", &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown filter mode %q", s)}
	}
}

// FilterState is the mutable, session-scoped filter. The zero value is the
// initial state: no labels, AND, purchased items hidden.
type FilterState struct {
	SelectedLabels map[string]struct{}
	Mode           FilterMode
	ShowPurchased  bool
}

// NewFilterState returns the initial session filter.
func NewFilterState() FilterState {
	return FilterState{SelectedLabels: map[string]struct{}{}, Mode: FilterAND}
}

// Clone copies the selected label set.
func (f FilterState) Clone() FilterState {
	out := f
	out.SelectedLabels = make(map[string]struct{}, len(f.SelectedLabels))
	for k := range f.SelectedLabels {
		out.SelectedLabels[k] = struct{}{}
	}
	return out
}

// Selected returns the selected labels sorted by name.
func (f FilterState) Selected() []string {
	out := make([]string, 0, len(f.SelectedLabels))
	for k := range f.SelectedLabels {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Matches reports whether a single item passes both the purchase gate and
// the label gate.
func (f FilterState) Matches(item ShoppingItem) bool {
	if !f.ShowPurchased && item.IsPurchased {
		return false
	}
	if len(f.SelectedLabels) == 0 {
		return true
	}
	if f.Mode == FilterOR {
		for _, l := range item.Labels {
			if _, ok := f.SelectedLabels[l]; ok {
				return true
			}
		}
		return false
	}
	for sel := range f.SelectedLabels {
		if !item.Labels.Contains(sel) {
			return false
		}
	}
	return true
}

// Filter returns the items passing f, in their original order.
func Filter(items []ShoppingItem, f FilterState) []ShoppingItem {
	out := make([]ShoppingItem, 0, len(items))
	for _, it := range items {
		if f.Matches(it) {
			out = append(out, it)
		}
	}
	return out
}
