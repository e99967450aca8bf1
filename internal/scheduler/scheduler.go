package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// parser accepts 5-field cron expressions and descriptors such as "@hourly" or "@every 1h".
var parser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// Job is one scheduled unit of work, such as a full-sync pipeline run.
type Job func(ctx context.Context) error

type Scheduler struct {
	job      Job
	spec     string
	schedule cronlib.Schedule
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewScheduler parses spec up front so a bad expression fails before the loop starts.
// A zero timeout leaves runs unbounded.
func NewScheduler(spec string, job Job, timeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return &Scheduler{
		job:      job,
		spec:     spec,
		schedule: schedule,
		timeout:  timeout,
		logger:   logger.With("component", "scheduler"),
		now:      time.Now,
	}, nil
}

// Start runs the job once immediately and then on every schedule tick until
// ctx is cancelled. Runs never overlap: a tick that passes during a run is skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "schedule", s.spec)

	s.run(ctx)

	for {
		next := s.schedule.Next(s.now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := s.now()
	if err := s.job(runCtx); err != nil {
		s.logger.Error("scheduled run failed", "error", err, "duration", s.now().Sub(started))
		return
	}
	s.logger.Info("scheduled run completed", "duration", s.now().Sub(started))
}
