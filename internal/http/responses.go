package http

import (
	"time"

	"shoplist/internal/core"
	"shoplist/internal/session"
)

type itemResponse struct {
	ID                  int64      `json:"id"`
	Name                string     `json:"name"`
	Quantity            int        `json:"quantity"`
	EstimatedPrice      string     `json:"estimated_price"`
	EstimatedPriceCents int64      `json:"estimated_price_cents"`
	ActualPrice         *string    `json:"actual_price,omitempty"`
	ActualPriceCents    *int64     `json:"actual_price_cents,omitempty"`
	Labels              []string   `json:"labels"`
	IsPurchased         bool       `json:"is_purchased"`
	PurchasedAt         *time.Time `json:"purchased_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

type labelResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type budgetResponse struct {
	TotalEstimated      string  `json:"total_estimated"`
	TotalEstimatedCents int64   `json:"total_estimated_cents"`
	TotalActual         string  `json:"total_actual"`
	TotalActualCents    int64   `json:"total_actual_cents"`
	Remaining           string  `json:"remaining"`
	RemainingCents      int64   `json:"remaining_cents"`
	PurchasedCount      int     `json:"purchased_count"`
	TotalCount          int     `json:"total_count"`
	ProgressPercentage  float64 `json:"progress_percentage"`
}

type filterResponse struct {
	Labels        []string `json:"labels"`
	Mode          string   `json:"mode"`
	ShowPurchased bool     `json:"show_purchased"`
}

type viewResponse struct {
	SessionID  string         `json:"session_id"`
	Generation uint64         `json:"generation"`
	Filter     filterResponse `json:"filter"`
	Items      []itemResponse `json:"items"`
	Budget     budgetResponse `json:"budget"`
}

func toItemResponse(it core.ShoppingItem) itemResponse {
	out := itemResponse{
		ID:                  it.ID,
		Name:                it.Name,
		Quantity:            it.Quantity,
		EstimatedPrice:      it.EstimatedPrice.String(),
		EstimatedPriceCents: it.EstimatedPrice.Cents,
		Labels:              append([]string{}, it.Labels...),
		IsPurchased:         it.IsPurchased,
		PurchasedAt:         it.PurchasedAt,
		CreatedAt:           it.CreatedAt,
	}
	if it.ActualPrice != nil {
		s := it.ActualPrice.String()
		c := it.ActualPrice.Cents
		out.ActualPrice = &s
		out.ActualPriceCents = &c
	}
	return out
}

func toItemResponses(items []core.ShoppingItem) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toItemResponse(it))
	}
	return out
}

func toLabelResponse(l core.Label) labelResponse {
	return labelResponse{ID: l.ID, Name: l.Name, Color: l.Color}
}

func toBudgetResponse(b core.BudgetInfo) budgetResponse {
	return budgetResponse{
		TotalEstimated:      b.TotalEstimated.String(),
		TotalEstimatedCents: b.TotalEstimated.Cents,
		TotalActual:         b.TotalActual.String(),
		TotalActualCents:    b.TotalActual.Cents,
		Remaining:           b.Remaining.String(),
		RemainingCents:      b.Remaining.Cents,
		PurchasedCount:      b.PurchasedCount,
		TotalCount:          b.TotalCount,
		ProgressPercentage:  b.ProgressPercentage,
	}
}

func toViewResponse(sessionID string, v session.View) viewResponse {
	return viewResponse{
		SessionID:  sessionID,
		Generation: v.Generation,
		Filter: filterResponse{
			Labels:        v.Filter.Selected(),
			Mode:          string(v.Filter.Mode),
			ShowPurchased: v.Filter.ShowPurchased,
		},
		Items:  toItemResponses(v.Items),
		Budget: toBudgetResponse(v.Budget),
	}
}
