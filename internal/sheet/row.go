package sheet

import (
	"strings"

	"golang.org/x/text/width"

	"github.com/ZacxDev/reelbatch/internal/composer"
	"github.com/ZacxDev/reelbatch/internal/config"
	"github.com/ZacxDev/reelbatch/pkg/types"
)

// Column positions in the A:L layout.
const (
	ColMarker = iota
	ColImageURL
	ColVideoURL
	ColAudioURL
	ColDuration
	ColOutputName
	ColVideoStart
	ColAudioStart
	ColImageScale
	ColFilterColor
	ColFilterOpacity
	ColOutputURL
)

const (
	// MarkerColumn and ResultColumn are the sheet letters written back.
	MarkerColumn = "A"
	ResultColumn = "L"
	// DefaultSelector covers every column of the layout.
	DefaultSelector = "A:L"
)

// IsExecutionMarker reports whether a column A cell flags its row for
// processing. Full-width forms fold to their ASCII equivalents.
func IsExecutionMarker(cell string) bool {
	switch fold(cell) {
	case "○", "o", "O":
		return true
	}
	return false
}

// ParseRecords turns raw rows (header first) into work items for every
// flagged row. Row indexes are 1-based sheet rows, so the first data row is 2.
func ParseRecords(records [][]string) []types.WorkItem {
	if len(records) < 2 {
		return nil
	}
	items := make([]types.WorkItem, 0)
	for i, cells := range records[1:] {
		if !IsExecutionMarker(cell(cells, ColMarker)) {
			continue
		}
		items = append(items, ParseRow(i+2, cells))
	}
	return items
}

// ParseRow applies the column defaults to one row. Missing trailing cells
// count as empty.
func ParseRow(rowIndex int, cells []string) types.WorkItem {
	return types.WorkItem{
		RowIndex:       rowIndex,
		ImageURL:       cell(cells, ColImageURL),
		VideoURL:       cell(cells, ColVideoURL),
		AudioURL:       cell(cells, ColAudioURL),
		Duration:       intOr(cell(cells, ColDuration), config.DefaultDurationSeconds),
		OutputFileName: composer.NormalizeOutputName(cell(cells, ColOutputName)),
		VideoStartTime: composer.ParseTimecode(fold(cell(cells, ColVideoStart))),
		AudioStartTime: composer.ParseTimecode(fold(cell(cells, ColAudioStart))),
		ImageScale:     intOr(cell(cells, ColImageScale), config.DefaultImageScale),
		FilterColor:    stringOr(fold(cell(cells, ColFilterColor)), config.DefaultFilterColor),
		FilterOpacity:  intOr(cell(cells, ColFilterOpacity), 0),
		OutputVideoURL: cell(cells, ColOutputURL),
	}
}

func cell(cells []string, col int) string {
	if col >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[col])
}

func fold(s string) string {
	return strings.TrimSpace(width.Fold.String(s))
}

// intOr reads a leading integer and falls back when there is none or it is
// zero, so "0" and "" both take the default.
func intOr(s string, fallback int) int {
	n, ok := composer.LeadingInt(fold(s))
	if !ok || n == 0 {
		return fallback
	}
	return n
}

func stringOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
