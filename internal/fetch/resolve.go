package fetch

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Ordered; the first pattern that matches wins.
var fileIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`/folders/([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`id=([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`^([a-zA-Z0-9_-]+)$`),
}

// ResolveFileID extracts the Drive file id from a share URL or a bare id.
func ResolveFileID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if unescaped, err := url.QueryUnescape(ref); err == nil {
		ref = unescaped
	}
	for _, pattern := range fileIDPatterns {
		if m := pattern.FindStringSubmatch(ref); m != nil {
			return m[1], nil
		}
	}
	return "", errors.Wrapf(ErrUnresolvable, "%q", ref)
}
