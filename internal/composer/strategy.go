package composer

import (
	"github.com/pkg/errors"
)

// Strategy is one of the fixed composition recipes.
type Strategy string

const (
	StrategyImageComposite Strategy = "image-composite"
	StrategyVideoComposite Strategy = "video-composite"
	StrategyAudioOnly      Strategy = "audio-only"
	StrategyVideoAudio     Strategy = "video-audio"
	StrategyOverlaySilent  Strategy = "overlay-silent"
	StrategyVideoOnly      Strategy = "video-only"
)

var ErrUnsupportedCombination = errors.New("unsupported combination of inputs")

// Presence is the shape of the inputs available for one item.
type Presence struct {
	Video   bool
	Overlay OverlayKind
	Audio   bool
}

// PresenceOf classifies three local (or remote) paths; empty means absent.
func PresenceOf(videoPath, overlayPath, audioPath string) Presence {
	return Presence{
		Video:   videoPath != "",
		Overlay: ClassifyOverlay(overlayPath),
		Audio:   audioPath != "",
	}
}

// Select maps a presence pattern to its strategy. Every pattern not listed,
// including any unknown overlay kind, is ErrUnsupportedCombination.
func Select(p Presence) (Strategy, error) {
	switch p {
	case Presence{Video: true, Overlay: KindImage, Audio: true}:
		return StrategyImageComposite, nil
	case Presence{Video: true, Overlay: KindVideo, Audio: true}:
		return StrategyVideoComposite, nil
	case Presence{Video: false, Overlay: KindNone, Audio: true}:
		return StrategyAudioOnly, nil
	case Presence{Video: true, Overlay: KindNone, Audio: true}:
		return StrategyVideoAudio, nil
	case Presence{Video: true, Overlay: KindImage, Audio: false},
		Presence{Video: true, Overlay: KindVideo, Audio: false}:
		return StrategyOverlaySilent, nil
	case Presence{Video: true, Overlay: KindNone, Audio: false}:
		return StrategyVideoOnly, nil
	}
	return "", errors.Wrapf(ErrUnsupportedCombination,
		"video=%t overlay=%s audio=%t", p.Video, p.Overlay, p.Audio)
}

// HasOverlay reports whether the strategy composites an overlay layer.
func (s Strategy) HasOverlay() bool {
	switch s {
	case StrategyImageComposite, StrategyVideoComposite, StrategyOverlaySilent:
		return true
	}
	return false
}

// HasAudio reports whether the strategy maps an audio track into the output.
func (s Strategy) HasAudio() bool {
	switch s {
	case StrategyImageComposite, StrategyVideoComposite, StrategyAudioOnly, StrategyVideoAudio:
		return true
	}
	return false
}

// CopiesAudio reports whether audio is stream-copied rather than encoded.
func (s Strategy) CopiesAudio() bool {
	return s == StrategyImageComposite || s == StrategyVideoComposite
}
