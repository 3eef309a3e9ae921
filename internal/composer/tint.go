package composer

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidColor = errors.New("invalid color")

// RGB holds channel values normalized to [0,1].
type RGB struct {
	R, G, B float64
}

// ParseHexColor parses "#RRGGBB" (the leading '#' is optional).
func ParseHexColor(s string) (RGB, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return RGB{}, errors.Wrapf(ErrInvalidColor, "%q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, errors.Wrapf(ErrInvalidColor, "%q", s)
	}
	return RGB{
		R: float64((v>>16)&0xff) / 255,
		G: float64((v>>8)&0xff) / 255,
		B: float64(v&0xff) / 255,
	}, nil
}

// Tint is a per-channel multiplier applied to the composited frame.
type Tint struct {
	Color   string
	Opacity float64
	// Multipliers: (1 - opacity) + channel*opacity
	R, G, B float64
}

// NewTint returns nil when opacity is zero or negative so that no filter is
// emitted at all.
func NewTint(color string, opacity float64) (*Tint, error) {
	if opacity <= 0 {
		return nil, nil
	}
	rgb, err := ParseHexColor(color)
	if err != nil {
		return nil, err
	}
	mix := func(c float64) float64 {
		return (1 - opacity) + c*opacity
	}
	return &Tint{
		Color:   color,
		Opacity: opacity,
		R:       mix(rgb.R),
		G:       mix(rgb.G),
		B:       mix(rgb.B),
	}, nil
}
