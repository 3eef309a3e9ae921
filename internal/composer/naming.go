package composer

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const defaultOutputExtension = ".mp4"

// NormalizeOutputName keeps a name that already ends in a supported video
// extension and otherwise replaces its last extension with ".mp4". Directory
// components are dropped. An empty name gets a generated "output_<uuid>.mp4".
func NormalizeOutputName(name string) string {
	name = strings.TrimSpace(name)
	if name != "" {
		name = filepath.Base(filepath.FromSlash(name))
	}
	if name == "" || name == "." || name == string(filepath.Separator) {
		return GeneratedOutputName()
	}

	ext := filepath.Ext(name)
	if IsVideoExtension(ext) {
		return name
	}

	base := strings.TrimSuffix(name, ext)
	if base == "" {
		return GeneratedOutputName()
	}
	return base + defaultOutputExtension
}

func GeneratedOutputName() string {
	return "output_" + uuid.NewString() + defaultOutputExtension
}
