package fetch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ZacxDev/reelbatch/internal/logging"
)

// FetchMany downloads every request concurrently, bounded by the configured
// concurrency. Every request is attempted; one failure does not cancel the
// others.
func (f *Fetcher) FetchMany(ctx context.Context, reqs []Request) Results {
	assets := make([]Asset, len(reqs))
	errs := make([]error, len(reqs))

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			assets[i], errs[i] = f.Fetch(ctx, req)
			return nil
		})
	}
	_ = g.Wait()

	var results Results
	for i, req := range reqs {
		if errs[i] != nil {
			f.logger.Warn("asset download failed",
				logging.String(logging.FieldURL, req.Ref),
				logging.Error(errs[i]))
			results.Failed = append(results.Failed, Failure{Ref: req.Ref, Err: errs[i]})
			continue
		}
		results.Succeeded = append(results.Succeeded, assets[i])
	}
	return results
}
