// Package sheet reads execution rows from a spreadsheet and writes results
// back to it.
//
// Reading and writing are separate capabilities. A public CSV export can be
// read without credentials but never written, so a Source is composed from a
// Reader and a Writer once at startup, and callers never branch on which
// variant they hold.
package sheet

import (
	"context"

	"github.com/ZacxDev/reelbatch/pkg/types"
)

// Reader lists the rows flagged for execution, with defaults applied.
type Reader interface {
	ExecutionRows(ctx context.Context, sourceID, selector string) ([]types.WorkItem, error)
}

// Writer records results. Implementations never return errors; failures are
// reported through WriteResult.Updated.
type Writer interface {
	RecordResult(ctx context.Context, sourceID string, rowIndex int, url string) WriteResult
	ClearMarker(ctx context.Context, sourceID string, rowIndex int) WriteResult
}

type Source interface {
	Reader
	Writer
}

type WriteResult struct {
	Updated bool
	Message string
}

type composed struct {
	Reader
	Writer
}

// Compose pairs a reader with a writer. A nil writer becomes a NoopWriter.
func Compose(r Reader, w Writer) Source {
	if w == nil {
		w = NoopWriter{}
	}
	return composed{Reader: r, Writer: w}
}

// NoopWriter is the writer for sources that cannot be written to.
type NoopWriter struct {
	Reason string
}

func (w NoopWriter) RecordResult(context.Context, string, int, string) WriteResult {
	return WriteResult{Message: w.message()}
}

func (w NoopWriter) ClearMarker(context.Context, string, int) WriteResult {
	return WriteResult{Message: w.message()}
}

func (w NoopWriter) message() string {
	if w.Reason != "" {
		return w.Reason
	}
	return "write-back unavailable"
}
