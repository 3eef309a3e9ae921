package fetch

import (
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"
)

var mediaTypeExtensions = map[string]string{
	"image/jpeg":       ".jpg",
	"image/png":        ".png",
	"image/gif":        ".gif",
	"image/bmp":        ".bmp",
	"image/webp":       ".webp",
	"video/mp4":        ".mp4",
	"video/quicktime":  ".mov",
	"video/x-msvideo":  ".avi",
	"video/webm":       ".webm",
	"video/x-matroska": ".mkv",
	"audio/mpeg":       ".mp3",
	"audio/mp4":        ".m4a",
	"audio/x-m4a":      ".m4a",
	"audio/wav":        ".wav",
	"audio/x-wav":      ".wav",
	"audio/aac":        ".aac",
	"audio/ogg":        ".ogg",
}

func remoteFileName(resp *http.Response) string {
	cd := resp.Header.Get("Content-Disposition")
	if cd == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return ""
	}
	name := strings.TrimSpace(params["filename"])
	if name == "" {
		return ""
	}
	switch base := filepath.Base(name); base {
	case ".", "..", string(filepath.Separator):
		return ""
	default:
		return base
	}
}

// detectExtension picks the stored file's extension from the reported file
// name, then the content type, then the final request path, then fallback.
func detectExtension(resp *http.Response, remoteName, fallback string) string {
	if ext := filepath.Ext(remoteName); ext != "" && ext != "." {
		return strings.ToLower(ext)
	}

	if mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		if ext, ok := mediaTypeExtensions[mediaType]; ok {
			return ext
		}
	}

	if resp.Request != nil && resp.Request.URL != nil {
		if ext := path.Ext(resp.Request.URL.Path); ext != "" {
			return strings.ToLower(ext)
		}
	}

	return fallback
}
