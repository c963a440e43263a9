package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"shoplist/internal/core"
)

const maxBodyBytes = 1 << 20

// decimal accepts a price as either a JSON string ("12,50") or a number
// (12.5) and keeps its textual form for core's cent parser.
type decimal string

func (d *decimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = decimal(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("price must be a string or a number")
	}
	*d = decimal(n.String())
	return nil
}

type itemRequest struct {
	Name           *string  `json:"name"`
	Quantity       *int     `json:"quantity"`
	EstimatedPrice *decimal `json:"estimated_price"`
	Labels         []string `json:"labels"`
	IsPurchased    *bool    `json:"is_purchased"`
}

type purchaseRequest struct {
	ActualPrice decimal `json:"actual_price"`
}

type labelRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

// filterRequest drives one session filter mutation. Replace uses Labels,
// Mode and ShowPurchased together.
type filterRequest struct {
	Action        string   `json:"action"`
	Label         string   `json:"label"`
	Labels        []string `json:"labels"`
	Mode          string   `json:"mode"`
	ShowPurchased *bool    `json:"show_purchased"`
}

// decodeJSON reads a single JSON object, rejecting unknown fields and
// oversized bodies. Failures come back as *core.ValidationError.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &core.ValidationError{Field: "body", Reason: "cannot be empty"}
		}
		return &core.ValidationError{Field: "body", Reason: err.Error()}
	}
	if dec.More() {
		return &core.ValidationError{Field: "body", Reason: "must contain a single JSON object"}
	}
	return nil
}

func parseEstimated(field string, d *decimal) (core.Money, error) {
	if d == nil || strings.TrimSpace(string(*d)) == "" {
		return core.Money{}, nil
	}
	cents, err := core.ParseNonNegativeDecimalToCents(string(*d))
	if err != nil {
		return core.Money{}, &core.ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a valid amount", string(*d))}
	}
	return core.Money{Cents: cents}, nil
}

func parseActual(field string, d decimal) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(string(d))
	if err != nil {
		return core.Money{}, &core.ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a positive amount", string(d))}
	}
	return core.Money{Cents: cents}, nil
}

func cleanLabels(in []string) core.LabelSet {
	out := make([]string, 0, len(in))
	for _, l := range in {
		out = append(out, sanitizeInput(l))
	}
	return core.NewLabelSet(out...)
}

// newItem builds an item from a create request. Quantity defaults to 1.
func (req itemRequest) newItem() (core.ShoppingItem, error) {
	item := core.ShoppingItem{Quantity: 1, Labels: cleanLabels(req.Labels)}
	if req.Name != nil {
		item.Name = sanitizeInput(*req.Name)
	}
	if req.Quantity != nil {
		item.Quantity = *req.Quantity
	}
	price, err := parseEstimated("estimated_price", req.EstimatedPrice)
	if err != nil {
		return core.ShoppingItem{}, err
	}
	item.EstimatedPrice = price
	return item, nil
}

// apply overlays the fields present in req onto item.
func (req itemRequest) apply(item core.ShoppingItem) (core.ShoppingItem, error) {
	if req.Name != nil {
		item.Name = sanitizeInput(*req.Name)
	}
	if req.Quantity != nil {
		item.Quantity = *req.Quantity
	}
	if req.EstimatedPrice != nil {
		price, err := parseEstimated("estimated_price", req.EstimatedPrice)
		if err != nil {
			return core.ShoppingItem{}, err
		}
		item.EstimatedPrice = price
	}
	if req.Labels != nil {
		item.Labels = cleanLabels(req.Labels)
	}
	if req.IsPurchased != nil {
		item.IsPurchased = *req.IsPurchased
	}
	return item, nil
}
