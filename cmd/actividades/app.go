package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/nomis52/actividades/clients/activityclient"
	"github.com/nomis52/actividades/config"
	"github.com/nomis52/actividades/metrics"
	"github.com/nomis52/actividades/narrator"
	"github.com/nomis52/actividades/schedule"
	"github.com/nomis52/actividades/workflow"
	"github.com/nomis52/actividades/workflows"
	"github.com/nomis52/actividades/workflows/demo"
)

const flushTimeout = 10 * time.Second

// app wires the client, metrics and narration for one process.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	out    io.Writer

	client      *activityclient.Client
	push        *metrics.PushRegistry
	scrape      *metrics.ScrapeRegistry
	stepMetrics *workflow.Metrics
}

func newApp(cfg config.Config, logger *slog.Logger, out io.Writer) (*app, error) {
	a := &app{cfg: cfg, logger: logger, out: out}

	var registry metrics.Registry
	switch {
	case cfg.Schedule.Cron != "" && cfg.Schedule.ListenAddress != "":
		scrape, err := metrics.NewScrapeRegistry()
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics registry: %w", err)
		}
		a.scrape = scrape
		registry = scrape
	case cfg.Monitoring.VictoriaMetricsURL != "":
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("failed to get hostname: %w", err)
		}
		a.push = metrics.NewPushRegistry(metrics.PushConfig{
			URL:      cfg.Monitoring.VictoriaMetricsURL,
			Prefix:   cfg.Monitoring.MetricsPrefix,
			Job:      cfg.Monitoring.JobName,
			Instance: hostname,
		})
		registry = a.push
	}

	opts := []activityclient.Option{
		activityclient.WithLogger(logger),
		activityclient.WithTimeout(cfg.Backend.Timeout),
		activityclient.WithPartialUpdateMethod(cfg.Backend.PartialUpdateMethod),
	}
	if registry != nil {
		opts = append(opts, activityclient.WithMetricsRegistry(registry))
		stepMetrics, err := workflow.NewMetrics(registry)
		if err != nil {
			return nil, fmt.Errorf("failed to register workflow metrics: %w", err)
		}
		a.stepMetrics = stepMetrics
	}

	client, err := activityclient.New(cfg.Backend.BaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create activities client: %w", err)
	}
	a.client = client
	return a, nil
}

// run executes the walkthrough once, or on the configured schedule until
// ctx is cancelled. Step failures are reported but never returned.
func (a *app) run(ctx context.Context) error {
	if a.cfg.Schedule.Cron == "" {
		if err := a.runOnce(ctx); err != nil {
			a.logger.Warn("walkthrough finished with failed steps", "error", err)
		}
		return nil
	}

	trigger, err := schedule.NewTrigger(a.cfg.Schedule.Cron, a.runOnce, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	a.logger.Info("running on schedule", "cron", trigger.Spec(), "next_run", trigger.NextRun().Format(time.RFC3339))

	if a.scrape == nil {
		trigger.Run(ctx)
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := trigger.Start(ctx)
	err = a.scrape.Serve(ctx, a.cfg.Schedule.ListenAddress, a.logger)
	cancel()
	<-done
	return err
}

// runOnce builds a fresh walkthrough and executes it.
func (a *app) runOnce(ctx context.Context) error {
	seq, err := demo.NewWorkflow(workflows.Params{
		Client:   a.client,
		Logger:   a.logger,
		Narrator: narrator.New(a.out),
		Metrics:  a.stepMetrics,
	})
	if err != nil {
		return err
	}

	runErr := seq.Execute(ctx)
	a.summarize(seq)

	if a.push != nil {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
		defer cancel()
		if err := a.push.Flush(flushCtx); err != nil {
			a.logger.Warn("failed to push metrics", "error", err)
		}
	}
	return runErr
}

func (a *app) summarize(w workflow.Workflow) {
	var succeeded, failed, skipped int
	for _, r := range w.GetAllResults() {
		switch {
		case r.IsSuccess():
			succeeded++
		case r.State == workflow.Skipped:
			skipped++
		default:
			failed++
		}
	}
	level := slog.LevelInfo
	if failed > 0 {
		level = slog.LevelWarn
	}
	a.logger.Log(context.Background(), level, "walkthrough finished",
		"succeeded", succeeded, "failed", failed, "skipped", skipped)
}
