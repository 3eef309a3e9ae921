package composer

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyOverlay(t *testing.T) {
	tests := map[string]OverlayKind{
		"":                  KindNone,
		"   ":               KindNone,
		"/tmp/a.JPG":        KindImage,
		"/tmp/a.jpeg":       KindImage,
		"/tmp/a.webp":       KindImage,
		"/tmp/a.mov":        KindVideo,
		"/tmp/a.MKV":        KindVideo,
		"/tmp/a.mp3":        KindUnknown,
		"/tmp/no-extension": KindUnknown,
	}
	for path, want := range tests {
		assert.Equal(t, want, ClassifyOverlay(path), path)
	}
}

func TestSelectStrategyTable(t *testing.T) {
	tests := []struct {
		presence Presence
		want     Strategy
	}{
		{Presence{Video: true, Overlay: KindImage, Audio: true}, StrategyImageComposite},
		{Presence{Video: true, Overlay: KindVideo, Audio: true}, StrategyVideoComposite},
		{Presence{Video: false, Overlay: KindNone, Audio: true}, StrategyAudioOnly},
		{Presence{Video: true, Overlay: KindNone, Audio: true}, StrategyVideoAudio},
		{Presence{Video: true, Overlay: KindImage, Audio: false}, StrategyOverlaySilent},
		{Presence{Video: true, Overlay: KindVideo, Audio: false}, StrategyOverlaySilent},
		{Presence{Video: true, Overlay: KindNone, Audio: false}, StrategyVideoOnly},
	}
	for _, tt := range tests {
		got, err := Select(tt.presence)
		require.NoError(t, err, "%+v", tt.presence)
		assert.Equal(t, tt.want, got)

		again, err := Select(tt.presence)
		require.NoError(t, err)
		assert.Equal(t, got, again)
	}
}

func TestSelectUnsupported(t *testing.T) {
	unsupported := []Presence{
		{},
		{Overlay: KindImage},
		{Overlay: KindVideo, Audio: true},
		{Overlay: KindImage, Audio: true},
		{Video: true, Overlay: KindUnknown, Audio: true},
		{Video: true, Overlay: KindUnknown},
		{Overlay: KindUnknown, Audio: true},
	}
	for _, p := range unsupported {
		_, err := Select(p)
		assert.True(t, errors.Is(err, ErrUnsupportedCombination), "%+v", p)
	}
}

func TestParseTimecode(t *testing.T) {
	tests := map[string]int{
		"1:30":    90,
		"0:05":    5,
		"1:02:03": 3723,
		"45":      45,
		"":        0,
		"   ":     0,
		"0:00":    0,
		"abc":     0,
		"1:xx":    0,
		"1:2:3:4": 0,
		"10s":     10,
		" 2:00 ":  120,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseTimecode(in), "%q", in)
	}
}

func TestLeadingInt(t *testing.T) {
	n, ok := LeadingInt("80%")
	assert.True(t, ok)
	assert.Equal(t, 80, n)

	n, ok = LeadingInt("-5")
	assert.True(t, ok)
	assert.Equal(t, -5, n)

	_, ok = LeadingInt("x12")
	assert.False(t, ok)
}

func TestNormalizeOutputName(t *testing.T) {
	tests := map[string]string{
		"clip":            "clip.mp4",
		"clip.mov":        "clip.mov",
		"clip.txt":        "clip.mp4",
		"clip.WEBM":       "clip.WEBM",
		"my.video.final":  "my.video.mp4",
		"../escape.mkv":   "escape.mkv",
		"dir/sub/out.avi": "out.avi",
		"clip.":           "clip.mp4",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeOutputName(in), "%q", in)
	}
}

func TestNormalizeOutputNameGeneratesForEmpty(t *testing.T) {
	for _, in := range []string{"", "  "} {
		got := NormalizeOutputName(in)
		assert.True(t, strings.HasPrefix(got, "output_"), got)
		assert.True(t, strings.HasSuffix(got, ".mp4"), got)
	}
	assert.NotEqual(t, NormalizeOutputName(""), NormalizeOutputName(""))
}

func TestParseHexColor(t *testing.T) {
	rgb, err := ParseHexColor("#FF8000")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rgb.R, 1e-9)
	assert.InDelta(t, 128.0/255, rgb.G, 1e-9)
	assert.InDelta(t, 0.0, rgb.B, 1e-9)

	_, err = ParseHexColor("00ff00")
	require.NoError(t, err)

	for _, bad := range []string{"", "#fff", "red", "#GGGGGG"} {
		_, err := ParseHexColor(bad)
		assert.True(t, errors.Is(err, ErrInvalidColor), bad)
	}
}

func TestNewTintIdentityAtZeroOpacity(t *testing.T) {
	tint, err := NewTint("#FF0000", 0)
	require.NoError(t, err)
	assert.Nil(t, tint)

	// An invalid color is irrelevant when nothing is applied.
	tint, err = NewTint("not-a-color", 0)
	require.NoError(t, err)
	assert.Nil(t, tint)
}

func TestNewTintMultipliers(t *testing.T) {
	tint, err := NewTint("#000000", 0.25)
	require.NoError(t, err)
	require.NotNil(t, tint)
	assert.InDelta(t, 0.75, tint.R, 1e-9)
	assert.InDelta(t, 0.75, tint.G, 1e-9)
	assert.InDelta(t, 0.75, tint.B, 1e-9)

	tint, err = NewTint("#FFFFFF", 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, tint.R, 1e-9)

	tint, err = NewTint("#FF0000", 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, tint.R, 1e-9)
	assert.InDelta(t, 0.5, tint.G, 1e-9)
	assert.InDelta(t, 0.5, tint.B, 1e-9)
}

func TestBuildAudioOnlyUsesSolidBackground(t *testing.T) {
	plan, err := NewPlanner().Build(Input{
		AudioPath:  "/work/a.mp3",
		Duration:   10,
		AudioStart: 5,
		OutputPath: "/out/x.mp4",
	})
	require.NoError(t, err)

	assert.Equal(t, StrategyAudioOnly, plan.Strategy)
	assert.Equal(t, 10, plan.Duration)
	assert.True(t, plan.Background.Solid())
	assert.Equal(t, "black", plan.Background.Color)
	assert.Equal(t, 1920, plan.Background.Width)
	assert.Equal(t, 1080, plan.Background.Height)
	assert.Nil(t, plan.Overlay)
	require.NotNil(t, plan.Audio)
	assert.Equal(t, 5, plan.Audio.Start)
	assert.False(t, plan.Audio.Copy)
}

func TestBuildVideoWithImageAndNoAudioHasNoAudioMapping(t *testing.T) {
	plan, err := NewPlanner().Build(Input{
		VideoPath:   "/work/bg.mp4",
		OverlayPath: "/work/logo.png",
		Duration:    20,
		VideoStart:  90,
		Scale:       0.8,
		OutputPath:  "/out/y.mp4",
	})
	require.NoError(t, err)

	assert.Equal(t, StrategyOverlaySilent, plan.Strategy)
	assert.Nil(t, plan.Audio)
	require.NotNil(t, plan.Overlay)
	assert.True(t, plan.Overlay.Loop())
	assert.InDelta(t, 0.8, plan.Overlay.Scale, 1e-9)
	assert.Equal(t, 1920, plan.Overlay.MaxWidth)
	assert.Equal(t, 90, plan.Background.Start)
	assert.Nil(t, plan.Tint)
}

func TestBuildCompositeCopiesAudioAndTints(t *testing.T) {
	plan, err := NewPlanner().Build(Input{
		VideoPath:   "/work/bg.mp4",
		OverlayPath: "/work/clip.mov",
		AudioPath:   "/work/a.mp3",
		Duration:    15,
		Scale:       1,
		TintColor:   "#336699",
		TintOpacity: 0.3,
		OutputPath:  "/out/z.mp4",
	})
	require.NoError(t, err)

	assert.Equal(t, StrategyVideoComposite, plan.Strategy)
	require.NotNil(t, plan.Overlay)
	assert.False(t, plan.Overlay.Loop())
	require.NotNil(t, plan.Audio)
	assert.True(t, plan.Audio.Copy)
	require.NotNil(t, plan.Tint)
	assert.InDelta(t, 0.7+0.2*0.3, plan.Tint.R, 1e-9)
}

func TestBuildPassesScaleThroughUnclamped(t *testing.T) {
	plan, err := NewPlanner().Build(Input{
		VideoPath:   "/work/bg.mp4",
		OverlayPath: "/work/logo.png",
		AudioPath:   "/work/a.mp3",
		Duration:    5,
		Scale:       2.5,
		OutputPath:  "/out/z.mp4",
	})
	require.NoError(t, err)
	assert.InDelta(t, 2.5, plan.Overlay.Scale, 1e-9)

	plan, err = NewPlanner().Build(Input{
		VideoPath:   "/work/bg.mp4",
		OverlayPath: "/work/logo.png",
		Duration:    5,
		Scale:       0,
		OutputPath:  "/out/z.mp4",
	})
	require.NoError(t, err)
	assert.Zero(t, plan.Overlay.Scale)
}

func TestBuildErrors(t *testing.T) {
	p := NewPlanner()

	_, err := p.Build(Input{Duration: 5, OutputPath: "/out/a.mp4"})
	assert.True(t, errors.Is(err, ErrUnsupportedCombination))

	_, err = p.Build(Input{VideoPath: "/w/bg.mp4", OverlayPath: "/w/notes.txt", AudioPath: "/w/a.mp3", Duration: 5, OutputPath: "/out/a.mp4"})
	assert.True(t, errors.Is(err, ErrUnsupportedCombination))

	_, err = p.Build(Input{VideoPath: "/w/bg.mp4", TintColor: "nope", TintOpacity: 0.5, Duration: 5, OutputPath: "/out/a.mp4"})
	assert.True(t, errors.Is(err, ErrInvalidColor))

	_, err = p.Build(Input{VideoPath: "/w/bg.mp4", Duration: 5})
	assert.Error(t, err)

	_, err = p.Build(Input{AudioPath: "/w/a.mp3", OutputPath: "/out/a.mp4"})
	assert.Error(t, err)
}

func TestWithCanvas(t *testing.T) {
	plan, err := NewPlanner(WithCanvas(1280, 720), WithBackgroundColor("white")).Build(Input{
		AudioPath:  "/w/a.mp3",
		Duration:   3,
		OutputPath: "/out/a.mp4",
	})
	require.NoError(t, err)
	assert.Equal(t, 1280, plan.Background.Width)
	assert.Equal(t, "white", plan.Background.Color)
}
