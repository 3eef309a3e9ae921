package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ZacxDev/reelbatch/internal/cache"
	"github.com/ZacxDev/reelbatch/internal/history"
	"github.com/ZacxDev/reelbatch/pkg/types"
	"github.com/ZacxDev/reelbatch/pkg/videoprocessor"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func renderResults(result types.BatchResult) string {
	rows := make([][]string, 0, len(result.Results))
	for _, r := range result.Results {
		status := "ok"
		detail := r.VideoURL
		if !r.Success {
			status = "failed"
			detail = r.Error
		} else if r.WriteBack.Message != "" {
			detail += " (" + r.WriteBack.Message + ")"
		}
		rows = append(rows, []string{
			strconv.Itoa(r.RowIndex),
			r.FileName,
			r.Strategy,
			status,
			r.Elapsed.Round(100 * time.Millisecond).String(),
			detail,
		})
	}
	out := renderTable(
		[]string{"Row", "File", "Strategy", "Status", "Elapsed", "Result"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
	return out + fmt.Sprintf("\nProcessed %d: %d succeeded, %d failed (run %s)",
		result.TotalProcessed, result.Successful, result.Failed, result.RunID)
}

func renderPlan(planned []videoprocessor.PlannedItem) string {
	rows := make([][]string, 0, len(planned))
	for _, p := range planned {
		strategy := string(p.Strategy)
		if p.Err != nil {
			strategy = "error: " + p.Err.Error()
		}
		rows = append(rows, []string{
			strconv.Itoa(p.Item.RowIndex),
			p.Item.OutputFileName,
			strconv.Itoa(p.Item.Duration) + "s",
			strategy,
		})
	}
	return renderTable(
		[]string{"Row", "File", "Duration", "Strategy"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
	)
}

func renderHistory(records []history.Record) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		status := "ok"
		detail := r.VideoURL
		if !r.Success {
			status = "failed"
			detail = r.Error
		}
		rows = append(rows, []string{
			humanize.Time(r.RecordedAt),
			strconv.Itoa(r.RowIndex),
			r.FileName,
			status,
			detail,
		})
	}
	return renderTable(
		[]string{"When", "Row", "File", "Status", "Result"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	)
}

func renderCacheStats(stats cache.Stats, entries []cache.Entry) string {
	summary := fmt.Sprintf("%d files, %s of %s (%.1f%%)",
		stats.FileCount,
		humanize.IBytes(uint64(stats.TotalSizeBytes)),
		humanize.IBytes(uint64(stats.MaxSizeBytes)),
		stats.UsageFraction*100)
	if len(entries) == 0 {
		return summary
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.OriginalFileName,
			humanize.IBytes(uint64(e.SizeBytes)),
			humanize.Time(e.LastAccessedAt),
			e.URL,
		})
	}
	return renderTable(
		[]string{"File", "Size", "Last used", "URL"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
	) + "\n" + summary
}
