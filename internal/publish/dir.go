package publish

import (
	"context"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/ZacxDev/reelbatch/internal/fileutil"
	"github.com/ZacxDev/reelbatch/internal/logging"
)

// DirPublisher copies files into a directory served at baseURL.
type DirPublisher struct {
	dir     string
	baseURL string
	logger  *slog.Logger
}

func NewDirPublisher(dir, baseURL string, logger *slog.Logger) *DirPublisher {
	return &DirPublisher{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logging.NewComponentLogger(logger, "publish-dir"),
	}
}

func (p *DirPublisher) Publish(ctx context.Context, localPath, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(ErrPublish, err.Error())
	}
	name = filepath.Base(name)
	dst := filepath.Join(p.dir, name)
	if samePath(localPath, dst) {
		if !fileutil.Exists(dst) {
			return "", errors.Wrapf(ErrPublish, "%s does not exist", dst)
		}
		p.logger.Debug("file already in publish directory", logging.String(logging.FieldPath, dst))
	} else if _, err := fileutil.CopyFileAtomic(localPath, dst); err != nil {
		return "", errors.Wrapf(ErrPublish, "copy %s: %v", name, err)
	}

	link := p.baseURL + "/" + url.PathEscape(name)
	p.logger.Info("published to directory",
		logging.String(logging.FieldPath, dst),
		logging.String(logging.FieldURL, link))
	return link, nil
}

// Retains reports whether localPath sits in the publish directory, where it
// is served as-is.
func (p *DirPublisher) Retains(localPath string) bool {
	return samePath(filepath.Dir(localPath), p.dir)
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
