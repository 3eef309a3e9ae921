// Package batch runs spreadsheet work items through fetch, compose, render
// and publish, one item at a time.
package batch

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ZacxDev/reelbatch/internal/composer"
	"github.com/ZacxDev/reelbatch/internal/fetch"
	"github.com/ZacxDev/reelbatch/internal/logging"
	"github.com/ZacxDev/reelbatch/internal/publish"
	"github.com/ZacxDev/reelbatch/internal/sheet"
	"github.com/ZacxDev/reelbatch/pkg/types"
)

// AssetCache is the subset of the asset cache the runner uses.
type AssetCache interface {
	Get(url string) (string, bool, error)
	Put(url, sourcePath, originalFileName string) (string, error)
}

type Fetcher interface {
	FetchMany(ctx context.Context, reqs []fetch.Request) fetch.Results
}

type Planner interface {
	Build(in composer.Input) (composer.Plan, error)
}

type Renderer interface {
	Render(ctx context.Context, plan composer.Plan) (string, error)
}

// Recorder stores finished batches. Failures are logged, never fatal.
type Recorder interface {
	RecordBatch(ctx context.Context, batch types.BatchResult) error
}

// Observer is notified around every item, in order.
type Observer interface {
	ItemStarted(index, total int, item types.WorkItem)
	ItemFinished(index, total int, result types.ItemResult)
}

// Dependencies are the collaborators of a Runner. Planner, Source and
// Recorder are optional.
type Dependencies struct {
	Cache     AssetCache
	Fetcher   Fetcher
	Planner   Planner
	Renderer  Renderer
	Publisher publish.Publisher
	Source    sheet.Source
	Recorder  Recorder
}

// Settings are the filesystem locations the runner owns.
type Settings struct {
	WorkDir   string
	OutputDir string
	// KeepOutputs leaves rendered files in OutputDir after publishing.
	KeepOutputs bool
}

// Options select the spreadsheet a batch reads from and writes back to.
type Options struct {
	SourceID string
	Selector string
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logging.NewComponentLogger(logger, "batch")
	}
}

func WithObserver(o Observer) Option {
	return func(r *Runner) {
		if o != nil {
			r.observer = o
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// Runner processes batches sequentially. It is safe to reuse across batches
// but not to run two batches on it at once.
type Runner struct {
	deps     Dependencies
	settings Settings
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// New validates dependencies and creates the work and output directories.
func New(deps Dependencies, settings Settings, opts ...Option) (*Runner, error) {
	switch {
	case deps.Cache == nil:
		return nil, errors.New("batch: cache is required")
	case deps.Fetcher == nil:
		return nil, errors.New("batch: fetcher is required")
	case deps.Renderer == nil:
		return nil, errors.New("batch: renderer is required")
	case deps.Publisher == nil:
		return nil, errors.New("batch: publisher is required")
	case settings.WorkDir == "" || settings.OutputDir == "":
		return nil, errors.New("batch: work and output directories are required")
	}
	if deps.Planner == nil {
		deps.Planner = composer.NewPlanner()
	}

	for _, dir := range []string{settings.WorkDir, settings.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "batch: create directory %q", dir)
		}
	}

	r := &Runner{
		deps:     deps,
		settings: settings,
		observer: nopObserver{},
		logger:   logging.NewComponentLogger(nil, "batch"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RunOnce reads the flagged rows from the configured source and runs them.
func (r *Runner) RunOnce(ctx context.Context, opts Options) (types.BatchResult, error) {
	if r.deps.Source == nil {
		return types.BatchResult{}, errors.New("batch: no row source configured")
	}
	items, err := r.deps.Source.ExecutionRows(ctx, opts.SourceID, opts.Selector)
	if err != nil {
		return types.BatchResult{}, errors.Wrap(err, "read execution rows")
	}
	return r.Run(ctx, items, opts)
}

// Run processes items in order. Item failures become result records and
// never stop the batch. A cache I/O error or a cancelled context stops the
// batch; the partial result is returned with the error.
func (r *Runner) Run(ctx context.Context, items []types.WorkItem, opts Options) (types.BatchResult, error) {
	batch := types.BatchResult{
		RunID:     uuid.NewString(),
		StartedAt: r.now(),
		Results:   make([]types.ItemResult, 0, len(items)),
	}
	logger := r.logger.With(logging.String(logging.FieldRunID, batch.RunID))
	logger.Info("batch started", logging.Int("items", len(items)))

	var fatal error
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			fatal = errors.Wrap(err, "batch cancelled")
			break
		}

		r.observer.ItemStarted(i, len(items), item)
		result, err := r.processItem(ctx, logger, item, opts)
		if err != nil {
			fatal = err
			logger.Error("batch aborted",
				logging.Int(logging.FieldRowIndex, item.RowIndex),
				logging.Error(err),
				logging.String(logging.FieldEventType, "batch_aborted"))
			break
		}
		batch.Append(result)
		r.observer.ItemFinished(i, len(items), result)
	}

	batch.FinishedAt = r.now()
	r.record(logger, batch)

	logger.Info("batch finished",
		logging.Int("total", batch.TotalProcessed),
		logging.Int("successful", batch.Successful),
		logging.Int("failed", batch.Failed),
		logging.Duration("elapsed", batch.FinishedAt.Sub(batch.StartedAt)))
	return batch, fatal
}

func (r *Runner) record(logger *slog.Logger, batch types.BatchResult) {
	if r.deps.Recorder == nil || len(batch.Results) == 0 {
		return
	}
	// The batch context may already be cancelled; history is still worth keeping.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.deps.Recorder.RecordBatch(ctx, batch); err != nil {
		logging.WarnWithContext(logger, "failed to record batch history", "history_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "results are missing from the history command"))
	}
}

type nopObserver struct{}

func (nopObserver) ItemStarted(int, int, types.WorkItem)    {}
func (nopObserver) ItemFinished(int, int, types.ItemResult) {}
