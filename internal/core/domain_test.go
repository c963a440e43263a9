package core

import (
	"strings"
	"testing"
	"time"
)

func TestLabelValidate(t *testing.T) {
	cases := []struct {
		l  Label
		ok bool
	}{
		{Label{Name: "Baby", Color: "#E1BEE7"}, true},
		{Label{Name: "Nursery room", Color: "#20b2aa"}, true},
		{Label{Name: "", Color: "#E1BEE7"}, false},
		{Label{Name: "   ", Color: "#E1BEE7"}, false},
		{Label{Name: " Baby", Color: "#E1BEE7"}, false},
		{Label{Name: "A,B", Color: "#E1BEE7"}, false},
		{Label{Name: "Baby", Color: "red"}, false},
		{Label{Name: "Baby", Color: "#E1BEE"}, false},
		{Label{Name: strings.Repeat("x", 201), Color: "#E1BEE7"}, false},
	}
	for i, tc := range cases {
		err := tc.l.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("case %d expected error", i)
			}
			if !IsValidation(err) {
				t.Fatalf("case %d expected ValidationError, got %T", i, err)
			}
		}
	}
}

func TestItemValidate(t *testing.T) {
	price := Money{Cents: 400}
	zero := Money{}
	good := ShoppingItem{Name: "Stroller", Quantity: 1, EstimatedPrice: Money{Cents: 0}}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	largest := ShoppingItem{Name: "Car", Quantity: MaxQuantity, EstimatedPrice: Money{Cents: MaxPriceCents}}
	if err := largest.Validate(); err != nil {
		t.Fatalf("bounds should be inclusive, got %v", err)
	}
	withPrice := good
	withPrice.ActualPrice = &price
	if err := withPrice.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []ShoppingItem{
		{Name: "", Quantity: 1},
		{Name: "x", Quantity: 0},
		{Name: "x", Quantity: 1, EstimatedPrice: Money{Cents: -1}},
		{Name: "x", Quantity: 1, ActualPrice: &zero},
		{Name: "x", Quantity: 1, Labels: LabelSet{"a,b"}},
		{Name: "x", Quantity: MaxQuantity + 1},
		{Name: "x", Quantity: 1, EstimatedPrice: Money{Cents: MaxPriceCents + 1}},
		{Name: "x", Quantity: 2, EstimatedPrice: Money{Cents: 90_000_000_000_000_000}},
		{Name: "x", Quantity: 1, ActualPrice: &Money{Cents: MaxPriceCents + 1}},
	}
	for i, it := range bads {
		if err := it.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestItemCloneDoesNotAlias(t *testing.T) {
	price := Money{Cents: 100}
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	orig := ShoppingItem{Name: "Bottle", Quantity: 2, ActualPrice: &price, PurchasedAt: &at, Labels: NewLabelSet("A", "B")}

	c := orig.Clone()
	c.Labels[0] = "Z"
	c.ActualPrice.Cents = 999
	*c.PurchasedAt = at.Add(time.Hour)

	if orig.Labels[0] != "A" || orig.ActualPrice.Cents != 100 || !orig.PurchasedAt.Equal(at) {
		t.Fatalf("clone aliased original: %+v", orig)
	}
}

func TestLineActual(t *testing.T) {
	price := Money{Cents: 250}
	cases := []struct {
		name string
		item ShoppingItem
		want int64
	}{
		{"unpurchased with price", ShoppingItem{Quantity: 2, ActualPrice: &price}, 0},
		{"purchased without price", ShoppingItem{Quantity: 2, IsPurchased: true}, 0},
		{"purchased with price", ShoppingItem{Quantity: 2, IsPurchased: true, ActualPrice: &price}, 500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.item.LineActual().Cents; got != tc.want {
				t.Fatalf("LineActual = %d, want %d", got, tc.want)
			}
		})
	}
}
