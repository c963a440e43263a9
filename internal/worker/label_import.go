package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"shoplist/internal/core"
	"shoplist/internal/sheets"
)

// LabelCreator is satisfied by *services.LabelService.
type LabelCreator interface {
	Create(ctx context.Context, name, color string) (core.Label, error)
}

// ImportResult summarises a label import.
type ImportResult struct {
	Created, Existing, Invalid int
}

// ImportLabels creates every label from src that does not exist yet. Names
// that fail validation are logged and skipped.
func ImportLabels(ctx context.Context, src sheets.LabelSource, labels LabelCreator) (ImportResult, error) {
	var res ImportResult
	names, err := src.ListLabels(ctx)
	if err != nil {
		return res, fmt.Errorf("load labels from sheet: %w", err)
	}

	for _, name := range names {
		_, err := labels.Create(ctx, name, "")
		switch {
		case err == nil:
			res.Created++
		case errors.Is(err, core.ErrDuplicateName):
			res.Existing++
		case core.IsValidation(err):
			slog.WarnContext(ctx, "Skipping invalid label from sheet", "name", name, "error", err)
			res.Invalid++
		default:
			return res, fmt.Errorf("create label %q: %w", name, err)
		}
	}

	slog.InfoContext(ctx, "Labels imported from sheet",
		"created", res.Created,
		"existing", res.Existing,
		"invalid", res.Invalid)
	return res, nil
}
