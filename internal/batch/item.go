package batch

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ZacxDev/reelbatch/internal/composer"
	"github.com/ZacxDev/reelbatch/internal/config"
	"github.com/ZacxDev/reelbatch/internal/fetch"
	"github.com/ZacxDev/reelbatch/internal/fileutil"
	"github.com/ZacxDev/reelbatch/internal/logging"
	"github.com/ZacxDev/reelbatch/internal/publish"
	"github.com/ZacxDev/reelbatch/pkg/types"
)

// slot is one of the three remote inputs of a row.
type slot struct {
	name       string
	url        string
	defaultExt string
}

func slotsOf(item types.WorkItem) []slot {
	return []slot{
		{name: "image", url: item.ImageURL, defaultExt: ".jpg"},
		{name: "video", url: item.VideoURL, defaultExt: ".mp4"},
		{name: "audio", url: item.AudioURL, defaultExt: ".mp3"},
	}
}

// itemError fails one item; any other error returned by the item pipeline
// aborts the batch.
type itemError struct {
	err error
}

func (e *itemError) Error() string { return e.err.Error() }
func (e *itemError) Unwrap() error { return e.err }

func failItem(err error) error {
	return &itemError{err: err}
}

func (r *Runner) processItem(ctx context.Context, batchLogger *slog.Logger, item types.WorkItem, opts Options) (types.ItemResult, error) {
	started := r.now()
	logger := batchLogger.With(
		logging.Int(logging.FieldRowIndex, item.RowIndex),
		logging.String("file_name", item.OutputFileName))

	result := types.ItemResult{RowIndex: item.RowIndex, FileName: item.OutputFileName}

	videoURL, strategy, err := r.produce(ctx, logger, item)
	result.Strategy = string(strategy)
	result.Elapsed = r.now().Sub(started)

	var ie *itemError
	switch {
	case errors.As(err, &ie):
		result.Error = ie.Error()
		logging.WarnWithContext(logger, "row failed", "row_failed",
			logging.String(logging.FieldStrategy, result.Strategy),
			logging.Error(ie.err),
			logging.String(logging.FieldImpact, "row skipped; marker left in place"))
		return result, nil
	case err != nil:
		return result, err
	}

	result.Success = true
	result.VideoURL = videoURL
	result.WriteBack = r.writeBack(ctx, item, videoURL, opts)

	logger.Info("row complete",
		logging.String(logging.FieldStrategy, result.Strategy),
		logging.String(logging.FieldURL, videoURL),
		logging.Bool("result_recorded", result.WriteBack.ResultRecorded),
		logging.Bool("marker_cleared", result.WriteBack.MarkerCleared),
		logging.Duration("elapsed", result.Elapsed))
	return result, nil
}

// produce runs fetch, plan, render and publish for one item inside a private
// work directory that is always removed.
func (r *Runner) produce(ctx context.Context, logger *slog.Logger, item types.WorkItem) (string, composer.Strategy, error) {
	predicted, err := PredictStrategy(item)
	if err != nil {
		return "", "", failItem(err)
	}

	workDir := filepath.Join(r.settings.WorkDir, config.TempDirPrefix+uuid.NewString())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", predicted, errors.Wrap(err, "create work directory")
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn("failed to remove work directory", logging.String(logging.FieldPath, workDir), logging.Error(err))
		}
	}()

	paths, err := r.resolveAssets(ctx, logger, item, workDir)
	if err != nil {
		return "", predicted, err
	}

	plan, err := r.deps.Planner.Build(composer.Input{
		VideoPath:   paths["video"],
		OverlayPath: paths["image"],
		AudioPath:   paths["audio"],
		Duration:    item.Duration,
		VideoStart:  item.VideoStartTime,
		AudioStart:  item.AudioStartTime,
		Scale:       item.ScaleFraction(),
		TintColor:   item.FilterColor,
		TintOpacity: item.OpacityFraction(),
		OutputPath:  filepath.Join(r.settings.OutputDir, item.OutputFileName),
	})
	if err != nil {
		return "", predicted, failItem(errors.Wrap(err, "plan"))
	}
	logger.Debug("composition planned", logging.String(logging.FieldStrategy, string(plan.Strategy)))

	output, err := r.deps.Renderer.Render(ctx, plan)
	if err != nil {
		return "", plan.Strategy, failItem(errors.Wrap(err, "render"))
	}
	retained := false
	if !r.settings.KeepOutputs {
		defer func() {
			if !retained {
				_ = fileutil.RemoveIfExists(output)
			}
		}()
	}

	link, err := r.deps.Publisher.Publish(ctx, output, item.OutputFileName)
	if err != nil {
		return "", plan.Strategy, failItem(errors.Wrap(err, "publish"))
	}
	if ret, ok := r.deps.Publisher.(publish.Retainer); ok && ret.Retains(output) {
		retained = true
	}
	return link, plan.Strategy, nil
}

// resolveAssets copies cache hits into workDir, fetches the misses and
// writes them through to the cache. It returns local paths by slot name.
func (r *Runner) resolveAssets(ctx context.Context, logger *slog.Logger, item types.WorkItem, workDir string) (map[string]string, error) {
	paths := make(map[string]string, 3)
	var (
		reqs     []fetch.Request
		reqSlots []string
	)

	for _, s := range slotsOf(item) {
		if s.url == "" {
			continue
		}
		cached, ok, err := r.deps.Cache.Get(s.url)
		if err != nil {
			return nil, errors.Wrapf(err, "cache lookup for %s", s.name)
		}
		if ok {
			local := filepath.Join(workDir, s.name+filepath.Ext(cached))
			if _, err := fileutil.CopyFile(cached, local); err != nil {
				return nil, errors.Wrapf(err, "copy cached %s", s.name)
			}
			logger.Debug("using cached asset", logging.String("slot", s.name), logging.String(logging.FieldURL, s.url))
			paths[s.name] = local
			continue
		}
		reqs = append(reqs, fetch.Request{
			Ref:        s.url,
			Dir:        workDir,
			Name:       s.name,
			DefaultExt: extensionHint(s.url, s.defaultExt),
		})
		reqSlots = append(reqSlots, s.name)
	}

	if len(reqs) == 0 {
		return paths, nil
	}

	results := r.deps.Fetcher.FetchMany(ctx, reqs)
	if !results.OK() {
		msgs := make([]string, 0, len(results.Failed))
		for _, f := range results.Failed {
			msgs = append(msgs, fmt.Sprintf("%s: %v", f.Ref, f.Err))
		}
		return nil, failItem(errors.Errorf("download failed: %s", strings.Join(msgs, "; ")))
	}

	for i, asset := range results.Succeeded {
		if _, err := r.deps.Cache.Put(asset.Ref, asset.Path, filepath.Base(asset.Path)); err != nil {
			return nil, errors.Wrapf(err, "cache %s", reqSlots[i])
		}
		paths[reqSlots[i]] = asset.Path
	}
	logger.Debug("fetched assets", logging.Int("count", len(results.Succeeded)))
	return paths, nil
}

// extensionHint returns the extension of the URL path when it looks like one,
// otherwise fallback.
func extensionHint(ref, fallback string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return fallback
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if len(ext) < 2 || len(ext) > 5 {
		return fallback
	}
	return ext
}

// PredictStrategy chooses the strategy a row will most likely get from its
// URLs alone. An image URL with a video extension counts as a video overlay;
// any other image URL counts as an image. The final choice is made after
// download, from the local file extensions.
func PredictStrategy(item types.WorkItem) (composer.Strategy, error) {
	overlay := composer.KindNone
	if item.ImageURL != "" {
		overlay = composer.KindImage
		if composer.IsVideoExtension(extensionHint(item.ImageURL, "")) {
			overlay = composer.KindVideo
		}
	}
	return composer.Select(composer.Presence{
		Video:   item.VideoURL != "",
		Overlay: overlay,
		Audio:   item.AudioURL != "",
	})
}

func (r *Runner) writeBack(ctx context.Context, item types.WorkItem, videoURL string, opts Options) types.WriteBack {
	if r.deps.Source == nil || opts.SourceID == "" {
		return types.WriteBack{Message: "no spreadsheet to update"}
	}

	recorded := r.deps.Source.RecordResult(ctx, opts.SourceID, item.RowIndex, videoURL)
	cleared := r.deps.Source.ClearMarker(ctx, opts.SourceID, item.RowIndex)

	var msgs []string
	if !recorded.Updated {
		msgs = append(msgs, "record result: "+recorded.Message)
	}
	if !cleared.Updated {
		msgs = append(msgs, "clear marker: "+cleared.Message)
	}
	return types.WriteBack{
		ResultRecorded: recorded.Updated,
		MarkerCleared:  cleared.Updated,
		Message:        strings.Join(msgs, "; "),
	}
}
