package sheets

import (
	"context"

	"shoplist/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerWriter records completed purchases in an external ledger.
	LedgerWriter interface {
		AppendPurchase(ctx context.Context, item core.ShoppingItem) (rowRef string, err error)
	}

	// LabelSource lists label names maintained outside the app.
	LabelSource interface {
		ListLabels(ctx context.Context) ([]string, error)
	}
)
