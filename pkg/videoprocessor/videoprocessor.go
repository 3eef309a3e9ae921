// Package videoprocessor is the public entry point. It assembles the cache,
// fetcher, renderer, row source, publisher and run history from a Config and
// exposes batch runs, dry-run planning and maintenance operations.
package videoprocessor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/ZacxDev/reelbatch/internal/batch"
	"github.com/ZacxDev/reelbatch/internal/cache"
	"github.com/ZacxDev/reelbatch/internal/composer"
	"github.com/ZacxDev/reelbatch/internal/config"
	"github.com/ZacxDev/reelbatch/internal/fetch"
	"github.com/ZacxDev/reelbatch/internal/ffmpeg"
	"github.com/ZacxDev/reelbatch/internal/history"
	"github.com/ZacxDev/reelbatch/internal/logging"
	"github.com/ZacxDev/reelbatch/internal/publish"
	"github.com/ZacxDev/reelbatch/internal/sheet"
	"github.com/ZacxDev/reelbatch/pkg/types"
)

var (
	ErrNoSpreadsheet   = errors.New("no spreadsheet id configured")
	ErrHistoryDisabled = errors.New("run history is disabled")
)

type Option func(*buildOptions)

type buildOptions struct {
	observer   batch.Observer
	googleOpts []option.ClientOption
}

// WithObserver receives per-item progress during RunOnce.
func WithObserver(o batch.Observer) Option {
	return func(b *buildOptions) {
		b.observer = o
	}
}

// WithGoogleOptions adds client options to every Google API client. Options
// that carry their own authentication make configured credentials optional.
func WithGoogleOptions(opts ...option.ClientOption) Option {
	return func(b *buildOptions) {
		b.googleOpts = append(b.googleOpts, opts...)
	}
}

// Processor owns every component of a configured deployment.
type Processor struct {
	cfg     config.Config
	cache   *cache.Cache
	source  sheet.Source
	runner  *batch.Runner
	history *history.Store
	logger  *slog.Logger
}

// New builds a Processor. Source and publisher variants are chosen here,
// once; nothing downstream branches on them.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*Processor, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	assetCache, err := cache.New(cfg.Paths.CacheDir,
		cache.WithMaxBytes(cfg.CacheMaxBytes()),
		cache.WithTTL(cfg.CacheTTL()),
		cache.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	source, err := newSource(ctx, cfg, logger, bo.googleOpts)
	if err != nil {
		return nil, err
	}
	publisher, err := newPublisher(ctx, cfg, logger, bo.googleOpts)
	if err != nil {
		return nil, err
	}

	p := &Processor{
		cfg:    cfg,
		cache:  assetCache,
		source: source,
		logger: logging.NewComponentLogger(logger, "processor"),
	}

	deps := batch.Dependencies{
		Cache: assetCache,
		Fetcher: fetch.New(
			fetch.WithBaseURL(cfg.Fetch.BaseURL),
			fetch.WithTimeout(cfg.FetchTimeout()),
			fetch.WithConcurrency(cfg.Fetch.Concurrency),
			fetch.WithUserAgent(cfg.Fetch.UserAgent),
			fetch.WithLogger(logger)),
		Planner: composer.NewPlanner(
			composer.WithCanvas(cfg.Render.BackgroundWidth, cfg.Render.BackgroundHeight),
			composer.WithBackgroundColor(cfg.Render.BackgroundColor)),
		Renderer: ffmpeg.NewRenderer(
			ffmpeg.WithBinary(cfg.Render.FFmpegBinary),
			ffmpeg.WithTimeout(cfg.RenderTimeout()),
			ffmpeg.WithVerify(cfg.Render.VerifyOutput),
			ffmpeg.WithLogger(logger)),
		Publisher: publisher,
		Source:    source,
	}

	if cfg.Paths.HistoryDB != "" {
		store, err := history.Open(cfg.Paths.HistoryDB)
		if err != nil {
			return nil, err
		}
		p.history = store
		deps.Recorder = store
	}

	p.runner, err = batch.New(deps, batch.Settings{
		WorkDir:     cfg.Paths.WorkDir,
		OutputDir:   cfg.Paths.OutputDir,
		KeepOutputs: cfg.Render.KeepOutputs,
	}, batch.WithLogger(logger), batch.WithObserver(bo.observer))
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	p.logger.Debug("processor ready",
		logging.String("source", cfg.Source.Kind),
		logging.String("publish", cfg.Publish.Kind),
		logging.Bool("history", p.history != nil))
	return p, nil
}

func newSource(ctx context.Context, cfg config.Config, logger *slog.Logger, extra []option.ClientOption) (sheet.Source, error) {
	switch cfg.Source.Kind {
	case config.SourceSheetsAPI:
		opts, err := googleClientOptions(cfg, extra)
		if err != nil {
			return nil, err
		}
		if cfg.Source.SheetsBaseURL != "" {
			opts = append(opts, option.WithEndpoint(cfg.Source.SheetsBaseURL))
		}
		client, err := sheet.NewAPIClient(ctx, logger, opts...)
		if err != nil {
			return nil, err
		}
		client = client.ScopedTo(cfg.Source.Selector)
		if !cfg.Source.WriteBack {
			return sheet.Compose(client, sheet.NoopWriter{Reason: "write-back disabled in config"}), nil
		}
		return client, nil
	case config.SourceCSV:
		reader := sheet.NewCSVSource(sheet.WithCSVBaseURL(cfg.Source.CSVBaseURL), sheet.WithCSVLogger(logger))
		return sheet.Compose(reader, sheet.NoopWriter{Reason: "csv export is read-only"}), nil
	default:
		return nil, errors.Errorf("unsupported source kind %q", cfg.Source.Kind)
	}
}

func newPublisher(ctx context.Context, cfg config.Config, logger *slog.Logger, extra []option.ClientOption) (publish.Publisher, error) {
	switch cfg.Publish.Kind {
	case config.PublishDrive:
		opts, err := googleClientOptions(cfg, extra)
		if err != nil {
			return nil, err
		}
		if cfg.Publish.DriveBaseURL != "" {
			opts = append(opts, option.WithEndpoint(cfg.Publish.DriveBaseURL))
		}
		return publish.NewDrivePublisher(ctx, cfg.Publish.DriveFolderID, logger, opts...)
	case config.PublishDir:
		return publish.NewDirPublisher(cfg.Publish.Dir, cfg.Publish.BaseURL, logger), nil
	default:
		return nil, errors.Errorf("unsupported publish kind %q", cfg.Publish.Kind)
	}
}

func googleClientOptions(cfg config.Config, extra []option.ClientOption) ([]option.ClientOption, error) {
	creds, err := cfg.GoogleCredentials()
	if err != nil {
		if len(extra) == 0 {
			return nil, errors.Wrap(err, "google credentials")
		}
		return append([]option.ClientOption(nil), extra...), nil
	}
	return append([]option.ClientOption{option.WithCredentialsJSON(creds)}, extra...), nil
}

func (p *Processor) Config() config.Config {
	return p.cfg
}

// RunOnce processes every flagged row of the configured spreadsheet.
func (p *Processor) RunOnce(ctx context.Context) (types.BatchResult, error) {
	opts, err := p.batchOptions()
	if err != nil {
		return types.BatchResult{}, err
	}
	return p.runner.RunOnce(ctx, opts)
}

// Tick is one scheduled cycle: a batch, then expired cache entries and old
// outputs are swept. Sweep failures are logged; the batch error is returned.
func (p *Processor) Tick(ctx context.Context) error {
	result, runErr := p.RunOnce(ctx)
	if runErr == nil {
		p.logger.Info("scheduled batch complete",
			logging.String(logging.FieldRunID, result.RunID),
			logging.Int("successful", result.Successful),
			logging.Int("failed", result.Failed))
	}

	if _, err := p.cache.CleanupExpired(); err != nil {
		logging.WarnWithContext(p.logger, "cache cleanup failed", "cache_cleanup_failed", logging.Error(err))
	}
	if _, err := p.runner.CleanupOutputs(p.cfg.OutputRetention()); err != nil {
		logging.WarnWithContext(p.logger, "output cleanup failed", "output_cleanup_failed", logging.Error(err))
	}
	return runErr
}

func (p *Processor) batchOptions() (batch.Options, error) {
	id := strings.TrimSpace(p.cfg.Source.SpreadsheetID)
	if id == "" {
		return batch.Options{}, ErrNoSpreadsheet
	}
	return batch.Options{SourceID: id, Selector: p.cfg.Source.Selector}, nil
}

// PlannedItem is the dry-run view of one row.
type PlannedItem struct {
	Item     types.WorkItem
	Strategy composer.Strategy
	Err      error
}

// Plan reads the flagged rows and predicts each one's strategy without
// downloading or rendering anything.
func (p *Processor) Plan(ctx context.Context) ([]PlannedItem, error) {
	opts, err := p.batchOptions()
	if err != nil {
		return nil, err
	}
	items, err := p.source.ExecutionRows(ctx, opts.SourceID, opts.Selector)
	if err != nil {
		return nil, errors.Wrap(err, "read execution rows")
	}

	planned := make([]PlannedItem, 0, len(items))
	for _, item := range items {
		strategy, err := batch.PredictStrategy(item)
		if err == nil && item.FilterOpacity > 0 {
			_, err = composer.NewTint(item.FilterColor, item.OpacityFraction())
		}
		planned = append(planned, PlannedItem{Item: item, Strategy: strategy, Err: err})
	}
	return planned, nil
}

func (p *Processor) CacheStats() cache.Stats {
	return p.cache.Stats()
}

func (p *Processor) CacheEntries() []cache.Entry {
	return p.cache.Entries()
}

// CleanupCache removes expired cache entries and returns how many went.
func (p *Processor) CleanupCache() (int, error) {
	return p.cache.CleanupExpired()
}

func (p *Processor) RemoveFromCache(url string) error {
	return p.cache.Remove(url)
}

// CleanupOutputs removes rendered files older than the configured retention.
func (p *Processor) CleanupOutputs() (int, error) {
	return p.runner.CleanupOutputs(p.cfg.OutputRetention())
}

// History returns the most recent item results, newest first.
func (p *Processor) History(ctx context.Context, limit int) ([]history.Record, error) {
	if p.history == nil {
		return nil, ErrHistoryDisabled
	}
	return p.history.Recent(ctx, limit)
}

func (p *Processor) Close() error {
	if p.history == nil {
		return nil
	}
	return p.history.Close()
}
