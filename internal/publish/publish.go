// Package publish makes rendered files reachable by link.
package publish

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

var ErrPublish = errors.New("publish failed")

// Publisher uploads a rendered file under name and returns a URL that anyone
// with the link can open.
type Publisher interface {
	Publish(ctx context.Context, localPath, name string) (string, error)
}

// Retainer is implemented by publishers that can serve a local file in place.
// Callers must not delete a path the publisher retains.
type Retainer interface {
	Retains(localPath string) bool
}

var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

// ContentType returns the video MIME type for name, defaulting to video/mp4.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "video/mp4"
}
