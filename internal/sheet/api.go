package sheet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ZacxDev/reelbatch/internal/logging"
	"github.com/ZacxDev/reelbatch/pkg/types"
)

const valueInputOption = "USER_ENTERED"

// APIClient reads and writes through the authenticated Sheets API. It serves
// as both Reader and Writer.
type APIClient struct {
	svc    *sheets.Service
	logger *slog.Logger
	// sheet prefix for written cells, taken from a selector like "Data!A:L"
	selector string
}

// ScopedTo returns a copy whose writes target the sheet named in selector.
func (c *APIClient) ScopedTo(selector string) *APIClient {
	scoped := *c
	scoped.selector = selector
	return &scoped
}

// NewAPIClient builds a client. Callers pass credentials as client options,
// normally option.WithCredentialsJSON.
func NewAPIClient(ctx context.Context, logger *slog.Logger, opts ...option.ClientOption) (*APIClient, error) {
	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create sheets service")
	}
	return &APIClient{
		svc:    svc,
		logger: logging.NewComponentLogger(logger, "sheet-api"),
	}, nil
}

func (c *APIClient) ExecutionRows(ctx context.Context, sourceID, selector string) ([]types.WorkItem, error) {
	if selector == "" {
		selector = DefaultSelector
	}
	resp, err := c.svc.Spreadsheets.Values.Get(sourceID, selector).Context(ctx).Do()
	if err != nil {
		return nil, errors.Wrapf(err, "read range %s", selector)
	}

	records := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		records[i] = cells
	}
	items := ParseRecords(records)

	c.logger.Info("read spreadsheet rows",
		logging.String("spreadsheet_id", sourceID),
		logging.String("range", selector),
		logging.Int("execution_rows", len(items)))
	return items, nil
}

func (c *APIClient) RecordResult(ctx context.Context, sourceID string, rowIndex int, url string) WriteResult {
	return c.update(ctx, sourceID, SheetScopedRange(c.selector, fmt.Sprintf("%s%d", ResultColumn, rowIndex)), url)
}

func (c *APIClient) ClearMarker(ctx context.Context, sourceID string, rowIndex int) WriteResult {
	return c.update(ctx, sourceID, SheetScopedRange(c.selector, fmt.Sprintf("%s%d", MarkerColumn, rowIndex)), "")
}

func (c *APIClient) update(ctx context.Context, sourceID, cellRange, value string) WriteResult {
	body := &sheets.ValueRange{Values: [][]interface{}{{value}}}
	_, err := c.svc.Spreadsheets.Values.Update(sourceID, cellRange, body).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		logging.WarnWithContext(c.logger, "spreadsheet update failed", "sheet_write_failed",
			logging.String("range", cellRange),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "grant the service account editor access to the spreadsheet"),
			logging.String(logging.FieldImpact, "the row keeps its marker and needs a manual update"))
		return WriteResult{Message: fmt.Sprintf("update %s: %v", cellRange, err)}
	}
	c.logger.Debug("spreadsheet updated", logging.String("range", cellRange))
	return WriteResult{Updated: true, Message: "updated " + cellRange}
}

// SheetScopedRange prefixes cellRange with the sheet name from selector
// ("Data!A:L" -> "Data!L5"), so writes land on the sheet that was read.
func SheetScopedRange(selector, cellRange string) string {
	if i := strings.LastIndex(selector, "!"); i > 0 {
		return selector[:i] + "!" + cellRange
	}
	return cellRange
}
