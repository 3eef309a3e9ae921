package composer

import (
	"path/filepath"
	"strings"
)

// OverlayKind classifies the overlay input by file extension.
type OverlayKind int

const (
	KindNone OverlayKind = iota
	KindImage
	KindVideo
	KindUnknown
)

func (k OverlayKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".webm": true,
	".mkv":  true,
}

// ClassifyOverlay returns KindNone for an empty path and KindUnknown for an
// extension that is neither an image nor a video.
func ClassifyOverlay(path string) OverlayKind {
	if strings.TrimSpace(path) == "" {
		return KindNone
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExtensions[ext]:
		return KindImage
	case videoExtensions[ext]:
		return KindVideo
	default:
		return KindUnknown
	}
}

// IsVideoExtension reports whether ext (with dot) is an accepted video or
// output extension.
func IsVideoExtension(ext string) bool {
	return videoExtensions[strings.ToLower(ext)]
}
