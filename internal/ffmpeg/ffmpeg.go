// Package ffmpeg compiles composition plans into ffmpeg invocations and runs
// them under a wall-clock timeout.
package ffmpeg

import (
	"context"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ZacxDev/reelbatch/internal/composer"
	"github.com/ZacxDev/reelbatch/internal/fileutil"
	"github.com/ZacxDev/reelbatch/internal/logging"
)

var (
	ErrRender  = errors.New("render failed")
	ErrTimeout = errors.New("render timed out")
)

const (
	DefaultBinary  = "ffmpeg"
	DefaultTimeout = 5 * time.Minute

	stderrTailBytes = 2048
)

type Option func(*Renderer)

func WithBinary(path string) Option {
	return func(r *Renderer) {
		if path != "" {
			r.binary = path
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(r *Renderer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithThreads(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.threads = n
		}
	}
}

// WithVerify probes every rendered file and fails the render when the result
// has no readable video stream.
func WithVerify(verify bool) Option {
	return func(r *Renderer) {
		r.verify = verify
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = logging.NewComponentLogger(logger, "renderer")
	}
}

// Renderer runs one ffmpeg process per plan.
type Renderer struct {
	binary  string
	timeout time.Duration
	threads int
	verify  bool
	logger  *slog.Logger
	probe   func(path string) (*VideoMetadata, error)
}

func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		binary:  DefaultBinary,
		timeout: DefaultTimeout,
		threads: GetOptimalThreadCount(),
		logger:  logging.NewComponentLogger(nil, "renderer"),
		probe:   GetVideoMetadata,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render writes plan.OutputPath and returns it. A failed or timed out render
// never leaves a partial output file behind.
func (r *Renderer) Render(ctx context.Context, plan composer.Plan) (string, error) {
	args, err := r.Args(plan)
	if err != nil {
		return "", errors.Wrapf(ErrRender, "build arguments: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(plan.OutputPath), 0o755); err != nil {
		return "", errors.Wrapf(ErrRender, "create output directory: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	logger := r.logger.With(
		logging.String(logging.FieldStrategy, string(plan.Strategy)),
		logging.String(logging.FieldPath, plan.OutputPath))
	logger.Debug("starting ffmpeg", logging.String("command", r.binary+" "+strings.Join(args, " ")))

	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Stderr = stderr
	cmd.WaitDelay = 5 * time.Second

	started := time.Now()
	runErr := cmd.Run()

	if ctxErr := ctx.Err(); ctxErr != nil {
		_ = fileutil.RemoveIfExists(plan.OutputPath)
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			logging.WarnWithContext(logger, "ffmpeg killed after timeout", "render_timeout",
				logging.Duration("timeout", r.timeout),
				logging.String(logging.FieldErrorHint, "raise render.timeout_seconds or shorten the row duration"),
				logging.String(logging.FieldImpact, "row marked as failed"))
			return "", errors.Wrapf(ErrTimeout, "after %s", r.timeout)
		}
		return "", errors.Wrap(ctxErr, "render cancelled")
	}
	if runErr != nil {
		_ = fileutil.RemoveIfExists(plan.OutputPath)
		return "", errors.Wrapf(ErrRender, "%v: %s", runErr, stderr.String())
	}
	if !fileutil.Exists(plan.OutputPath) {
		return "", errors.Wrap(ErrRender, "ffmpeg exited without writing output")
	}

	if r.verify {
		meta, err := r.probe(plan.OutputPath)
		if err != nil {
			_ = fileutil.RemoveIfExists(plan.OutputPath)
			return "", errors.Wrapf(ErrRender, "verify output: %v", err)
		}
		logger.Debug("verified output",
			logging.Float64("duration_seconds", meta.Duration),
			logging.Int("width", meta.Width),
			logging.Int("height", meta.Height))
	}

	logger.Info("render complete", logging.Duration("elapsed", time.Since(started)))
	return plan.OutputPath, nil
}

// GetOptimalThreadCount uses 75% of available cores to prevent overload.
func GetOptimalThreadCount() int {
	cpuCount := runtime.NumCPU()
	return int(math.Max(1, float64(cpuCount)*0.75))
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(string(t.buf))
}
