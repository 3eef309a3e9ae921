// Package schedule runs a job on a cron expression. Ticks that fire while a
// previous run is still going join that run instead of starting another.
package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/ZacxDev/reelbatch/internal/logging"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logging.NewComponentLogger(logger, "schedule")
	}
}

// WithRunOnStart triggers one tick as soon as Run starts.
func WithRunOnStart() Option {
	return func(s *Scheduler) {
		s.runOnStart = true
	}
}

type Scheduler struct {
	expr       string
	schedule   cron.Schedule
	job        Job
	group      singleflight.Group
	runOnStart bool
	logger     *slog.Logger
}

// New parses a standard five-field expression or a descriptor such as
// "@hourly" or "@every 10m".
func New(expr string, job Job, opts ...Option) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("schedule: job is required")
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid cron expression %q", expr)
	}

	s := &Scheduler{
		expr:     expr,
		schedule: sched,
		job:      job,
		logger:   logging.NewComponentLogger(nil, "schedule"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Next returns the first activation after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Tick runs the job now, or waits for the run already in flight. shared
// reports whether the run's result went to more than one caller.
func (s *Scheduler) Tick(ctx context.Context) (shared bool, err error) {
	_, err, shared = s.group.Do("tick", func() (any, error) {
		started := time.Now()
		s.logger.Info("scheduled run started")
		err := s.job(ctx)
		if err != nil {
			logging.WarnWithContext(s.logger, "scheduled run failed", "scheduled_run_failed",
				logging.Error(err),
				logging.Duration("elapsed", time.Since(started)),
				logging.String(logging.FieldImpact, "rows are retried on the next tick"))
			return nil, err
		}
		s.logger.Info("scheduled run finished", logging.Duration("elapsed", time.Since(started)))
		return nil, nil
	})
	if shared {
		s.logger.Debug("tick joined an in-flight run")
	}
	return shared, err
}

// Run blocks until ctx is done, ticking on the schedule. In-flight runs see
// the cancellation through ctx and are waited for before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New()
	c.Schedule(s.schedule, cron.FuncJob(func() {
		_, _ = s.Tick(ctx)
	}))

	s.logger.Info("scheduler started",
		logging.String("cron", s.expr),
		logging.String("next", s.Next(time.Now()).Format(time.RFC3339)))
	c.Start()
	if s.runOnStart {
		go func() { _, _ = s.Tick(ctx) }()
	}

	<-ctx.Done()
	<-c.Stop().Done()
	// Stop only waits for cron-started jobs; a run-on-start tick may still be going.
	_, _, _ = s.group.Do("tick", func() (any, error) { return nil, nil })
	s.logger.Info("scheduler stopped")
	return nil
}
