package sheet

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ZacxDev/reelbatch/internal/logging"
	"github.com/ZacxDev/reelbatch/pkg/types"
)

const (
	DefaultCSVBaseURL = "https://docs.google.com"
	csvTimeout        = 30 * time.Second
	csvUserAgent      = "reelbatch/1.0"
)

var ErrNotPublic = errors.New("spreadsheet is not shared with anyone who has the link")

type CSVOption func(*CSVSource)

func WithCSVBaseURL(base string) CSVOption {
	return func(s *CSVSource) {
		if base != "" {
			s.baseURL = strings.TrimRight(base, "/")
		}
	}
}

func WithCSVHTTPClient(client *http.Client) CSVOption {
	return func(s *CSVSource) {
		if client != nil {
			s.client = client
		}
	}
}

func WithCSVLogger(logger *slog.Logger) CSVOption {
	return func(s *CSVSource) {
		s.logger = logging.NewComponentLogger(logger, "sheet-csv")
	}
}

// CSVSource reads a publicly shared spreadsheet through its CSV export. It
// needs no credentials and cannot write.
type CSVSource struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewCSVSource(opts ...CSVOption) *CSVSource {
	s := &CSVSource{
		baseURL: DefaultCSVBaseURL,
		client:  &http.Client{Timeout: csvTimeout},
		logger:  logging.NewComponentLogger(nil, "sheet-csv"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportURL returns the CSV URL of the first sheet, or of sheetName when set.
func (s *CSVSource) ExportURL(spreadsheetID, sheetName string) string {
	id := url.PathEscape(spreadsheetID)
	if sheetName != "" {
		return fmt.Sprintf("%s/spreadsheets/d/%s/gviz/tq?tqx=out:csv&sheet=%s", s.baseURL, id, url.QueryEscape(sheetName))
	}
	return fmt.Sprintf("%s/spreadsheets/d/%s/export?format=csv", s.baseURL, id)
}

// ExecutionRows downloads the export; selector is an optional sheet name.
func (s *CSVSource) ExecutionRows(ctx context.Context, sourceID, selector string) ([]types.WorkItem, error) {
	target := s.ExportURL(sourceID, selector)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build csv request")
	}
	req.Header.Set("User-Agent", csvUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "download csv export")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return nil, errors.Wrapf(ErrNotPublic, "spreadsheet %s", sourceID)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, errors.Errorf("download csv export: unexpected status %d", resp.StatusCode)
	}

	records, err := readCSV(resp.Body)
	if err != nil {
		return nil, err
	}
	items := ParseRecords(records)

	s.logger.Info("read spreadsheet rows",
		logging.String("spreadsheet_id", sourceID),
		logging.Int("total_rows", max(len(records)-1, 0)),
		logging.Int("execution_rows", len(items)))
	return items, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse csv export")
	}
	return records, nil
}
