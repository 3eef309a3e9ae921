package composer

import (
	"github.com/pkg/errors"

	"github.com/ZacxDev/reelbatch/internal/config"
)

// Input is everything the planner needs for one item. Paths are local files;
// an empty path means the input is absent. Scale and TintOpacity are
// fractions (0.8 for 80%) and are not clamped.
type Input struct {
	VideoPath   string
	OverlayPath string
	AudioPath   string

	Duration   int
	VideoStart int
	AudioStart int

	Scale       float64
	TintColor   string
	TintOpacity float64

	OutputPath string
}

// Background is either a trimmed video or a generated solid color frame.
type Background struct {
	Path  string // empty for a solid background
	Start int

	Color  string
	Width  int
	Height int
}

// Solid reports whether the background is generated rather than read.
func (b Background) Solid() bool {
	return b.Path == ""
}

// Overlay is centered over the background after scaling by Scale, bounded by
// MaxWidth x MaxHeight with the aspect ratio preserved.
type Overlay struct {
	Path      string
	Kind      OverlayKind
	Scale     float64
	MaxWidth  int
	MaxHeight int
}

// Loop reports whether the overlay is a still image repeated for the duration.
func (o Overlay) Loop() bool {
	return o.Kind == KindImage
}

type Audio struct {
	Path  string
	Start int
	Copy  bool
}

// Plan is an engine-neutral description of one render.
type Plan struct {
	Strategy   Strategy
	Duration   int
	Background Background
	Overlay    *Overlay
	Audio      *Audio
	Tint       *Tint
	OutputPath string
}

type PlannerOption func(*Planner)

// WithCanvas sets the size of generated solid backgrounds.
func WithCanvas(width, height int) PlannerOption {
	return func(p *Planner) {
		if width > 0 && height > 0 {
			p.width, p.height = width, height
		}
	}
}

func WithBackgroundColor(color string) PlannerOption {
	return func(p *Planner) {
		if color != "" {
			p.color = color
		}
	}
}

// Planner turns an Input into a Plan. It holds no state between calls.
type Planner struct {
	width  int
	height int
	color  string
}

func NewPlanner(opts ...PlannerOption) *Planner {
	p := &Planner{
		width:  config.OutputWidth,
		height: config.OutputHeight,
		color:  "black",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Build selects the strategy for the inputs present and fills in the plan.
func (p *Planner) Build(in Input) (Plan, error) {
	strategy, err := Select(PresenceOf(in.VideoPath, in.OverlayPath, in.AudioPath))
	if err != nil {
		return Plan{}, err
	}
	if in.OutputPath == "" {
		return Plan{}, errors.New("output path is required")
	}
	// Looped images and generated backgrounds have no natural end.
	if in.Duration <= 0 {
		return Plan{}, errors.Errorf("duration must be positive, got %d", in.Duration)
	}

	plan := Plan{
		Strategy:   strategy,
		Duration:   in.Duration,
		OutputPath: in.OutputPath,
	}

	if strategy == StrategyAudioOnly {
		plan.Background = Background{Color: p.color, Width: p.width, Height: p.height}
	} else {
		plan.Background = Background{Path: in.VideoPath, Start: in.VideoStart}

		tint, err := NewTint(in.TintColor, in.TintOpacity)
		if err != nil {
			return Plan{}, errors.Wrap(err, "filter color")
		}
		plan.Tint = tint
	}

	if strategy.HasOverlay() {
		plan.Overlay = &Overlay{
			Path:      in.OverlayPath,
			Kind:      ClassifyOverlay(in.OverlayPath),
			Scale:     in.Scale,
			MaxWidth:  config.MaxOverlayWidth,
			MaxHeight: config.MaxOverlayHeight,
		}
	}

	if strategy.HasAudio() {
		plan.Audio = &Audio{
			Path:  in.AudioPath,
			Start: in.AudioStart,
			Copy:  strategy.CopiesAudio(),
		}
	}

	return plan, nil
}
