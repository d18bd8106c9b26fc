// Package schedule re-runs a job on a cron schedule.
//
// A Trigger is started once and runs until its context is cancelled. Runs
// never overlap: the next run time is computed after the previous run
// returns.
//
// Example usage:
//
//	trigger, err := schedule.NewTrigger("*/30 * * * *", runDemo, logger)
//	if err != nil {
//	    return err
//	}
//	trigger.Run(ctx) // blocks until ctx is cancelled
package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidCronSpec is returned when the cron expression cannot be parsed.
var ErrInvalidCronSpec = errors.New("invalid cron spec")

// RunFunc is the job executed on each tick.
type RunFunc func(ctx context.Context) error

// Trigger executes a RunFunc according to a cron schedule.
type Trigger struct {
	spec     string
	schedule cron.Schedule
	run      RunFunc
	logger   *slog.Logger
	now      func() time.Time
}

// Parse parses a standard 5-field cron expression (minute, hour, day,
// month, weekday) or a descriptor such as @hourly or @every 5m.
// Returns ErrInvalidCronSpec if the expression cannot be parsed.
func Parse(spec string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, errors.Join(ErrInvalidCronSpec, err)
	}
	return sched, nil
}

// NewTrigger creates a Trigger with the given cron expression, as accepted
// by Parse.
func NewTrigger(spec string, run RunFunc, logger *slog.Logger) (*Trigger, error) {
	sched, err := Parse(spec)
	if err != nil {
		return nil, err
	}
	return newTrigger(spec, sched, run, logger), nil
}

func newTrigger(spec string, sched cron.Schedule, run RunFunc, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{
		spec:     spec,
		schedule: sched,
		run:      run,
		logger:   logger,
		now:      time.Now,
	}
}

// Spec returns the cron expression the trigger was built from.
func (t *Trigger) Spec() string {
	return t.spec
}

// NextRun returns the next scheduled run time from now.
func (t *Trigger) NextRun() time.Time {
	return t.schedule.Next(t.now())
}

// Start runs the trigger loop in a goroutine and returns immediately. The
// returned channel is closed when the loop exits.
func (t *Trigger) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		t.Run(ctx)
	}()
	return done
}

// Run blocks, executing the job at each scheduled time until ctx is cancelled.
func (t *Trigger) Run(ctx context.Context) {
	for {
		next := t.NextRun()
		wait := next.Sub(t.now())

		t.logger.Info("waiting for next scheduled run", "next_run", next.Format(time.RFC3339), "wait", wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			t.logger.Info("schedule stopped")
			return
		case <-timer.C:
			t.execute(ctx)
		}
	}
}

func (t *Trigger) execute(ctx context.Context) {
	t.logger.Info("starting scheduled run")
	start := t.now()
	if err := t.run(ctx); err != nil {
		t.logger.Warn("scheduled run completed with error", "error", err, "duration", t.now().Sub(start))
		return
	}
	t.logger.Info("scheduled run completed successfully", "duration", t.now().Sub(start))
}
