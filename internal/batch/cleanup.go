package batch

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ZacxDev/reelbatch/internal/config"
	"github.com/ZacxDev/reelbatch/internal/logging"
)

// CleanupOutputs deletes rendered files older than olderThan from the output
// directory, plus work directories left behind by interrupted runs. It
// returns how many entries were removed.
func (r *Runner) CleanupOutputs(olderThan time.Duration) (int, error) {
	cutoff := r.now().Add(-olderThan)

	removed, err := removeOlder(r.settings.OutputDir, cutoff, func(e os.DirEntry) bool {
		return e.Type().IsRegular()
	})
	if err != nil {
		return removed, err
	}

	stale, err := removeOlder(r.settings.WorkDir, cutoff, func(e os.DirEntry) bool {
		return e.IsDir() && strings.HasPrefix(e.Name(), config.TempDirPrefix)
	})
	removed += stale
	if err != nil {
		return removed, err
	}

	if removed > 0 {
		r.logger.Info("removed old outputs", logging.Int("count", removed), logging.Duration("older_than", olderThan))
	}
	return removed, nil
}

func removeOlder(dir string, cutoff time.Time, match func(os.DirEntry) bool) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "read %s", dir)
	}

	removed := 0
	for _, e := range entries {
		if !match(e) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return removed, errors.Wrapf(err, "remove %s", e.Name())
		}
		removed++
	}
	return removed, nil
}
