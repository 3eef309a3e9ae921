package container

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Profile describes how a rendered file is encoded for one container format.
type Profile interface {
	// GetName returns the container name, which is also its extension without the dot
	GetName() string

	// GetExtension returns the file extension including the dot
	GetExtension() string

	// GetVideoCodec returns the encoder used for re-encoded video
	GetVideoCodec() string

	// GetAudioCodec returns the encoder used when audio is not stream-copied
	GetAudioCodec() string

	// GetAudioBitrate returns the target bitrate for encoded audio
	GetAudioBitrate() string

	// GetEncoderOptions returns extra output options for the video encoder
	GetEncoderOptions() map[string]interface{}

	// AcceptsAudioCopy reports whether common source audio (aac, mp3) can be
	// stream-copied into this container
	AcceptsAudioCopy() bool
}

var ErrUnsupportedContainer = errors.New("unsupported container")

var profiles = make(map[string]Profile)

// Register adds a profile to the registry
func Register(p Profile) {
	profiles[p.GetName()] = p
}

// Get returns a profile by name or extension, with or without the leading dot
func Get(name string) (Profile, error) {
	key := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".")
	p, ok := profiles[key]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedContainer, "%q", name)
	}
	return p, nil
}

// ForFile returns the profile matching the extension of path
func ForFile(path string) (Profile, error) {
	return Get(filepath.Ext(path))
}

// IsSupported reports whether ext (".mp4" or "mp4") names a registered container
func IsSupported(ext string) bool {
	_, err := Get(ext)
	return ext != "" && err == nil
}

// Extensions returns the registered extensions, dot included, sorted
func Extensions() []string {
	exts := make([]string, 0, len(profiles))
	for _, p := range profiles {
		exts = append(exts, p.GetExtension())
	}
	sort.Strings(exts)
	return exts
}
