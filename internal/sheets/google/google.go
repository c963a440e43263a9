package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"shoplist/internal/core"
	ports "shoplist/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var (
	_ ports.LedgerWriter = (*Client)(nil)
	_ ports.LabelSource  = (*Client)(nil)
)

// Ledger columns: date, item, quantity, estimated, actual, labels.
const ledgerColumns = "A:F"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	ledgerSheet   string
	labelsSheet   string
}

type Options struct {
	SpreadsheetID string
	LedgerSheet   string
	// LabelsSheet holds one label name per row in column A under a header.
	LabelsSheet string
	// ClientOptions override credential discovery; tests point these at a
	// local server.
	ClientOptions []goption.ClientOption
}

// New creates a Sheets client. Unless Options.ClientOptions is set,
// credentials come from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if opts.LedgerSheet == "" {
		opts.LedgerSheet = "Purchases"
	}
	if opts.LabelsSheet == "" {
		opts.LabelsSheet = "Labels"
	}

	clientOpts := opts.ClientOptions
	if len(clientOpts) == 0 {
		creds, err := serviceAccountCredentials()
		if err != nil {
			return nil, err
		}
		clientOpts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets client ready",
		"ledger_sheet", opts.LedgerSheet,
		"labels_sheet", opts.LabelsSheet)

	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		ledgerSheet:   opts.LedgerSheet,
		labelsSheet:   opts.LabelsSheet,
	}, nil
}

func serviceAccountCredentials() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// AppendPurchase adds one ledger row for a purchased item and returns the
// A1 range that was written.
func (c *Client) AppendPurchase(ctx context.Context, item core.ShoppingItem) (string, error) {
	if !item.IsPurchased {
		return "", fmt.Errorf("item %d is not purchased", item.ID)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!%s", c.ledgerSheet, ledgerColumns)
	vr := &gsheet.ValueRange{Values: [][]any{purchaseRow(item)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.ledgerSheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

// purchaseRow renders an item as ledger cells. Prices are decimal numbers so
// the sheet can sum them; an unknown actual price is left blank.
func purchaseRow(item core.ShoppingItem) []any {
	date := ""
	if item.PurchasedAt != nil {
		date = item.PurchasedAt.Format(time.DateOnly)
	}
	var actual any = ""
	if item.ActualPrice != nil {
		actual = item.ActualPrice.Float()
	}
	return []any{
		date,
		item.Name,
		item.Quantity,
		item.EstimatedPrice.Float(),
		actual,
		item.Labels.Format(),
	}
}

// ListLabels reads label names from the labels sheet, skipping the header,
// blanks and "#" comments. Duplicates are dropped keeping first-seen order.
func (c *Client) ListLabels(ctx context.Context) ([]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	return c.readCol(ctx, c.labelsSheet, "A2:A")
}

func (c *Client) readCol(ctx context.Context, sheetName, col string) ([]string, error) {
	rng := fmt.Sprintf("%s!%s", sheetName, col)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return columnValues(resp.Values), nil
}

func columnValues(rows [][]any) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		v := strings.TrimSpace(fmt.Sprint(row[0]))
		if v == "" || strings.HasPrefix(v, "#") {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
