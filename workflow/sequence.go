package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nomis52/actividades/metrics"
)

// Step is one numbered unit of work in a Sequence.
type Step struct {
	Number int
	Title  string
	// Note is printed under the opening banner. Optional.
	Note string
	// NoteFunc, when set, replaces Note and is called just before the step
	// runs, so the note can include values produced by earlier steps.
	NoteFunc func() string
	// Requires lists earlier step numbers that must succeed first.
	Requires []int
	// Run performs the step and returns a closing message for the narration.
	Run func(ctx context.Context) (string, error)
}

// Result records what happened to a step.
type Result struct {
	State     StepState
	Message   string
	Error     error
	StartTime time.Time
	EndTime   time.Time
}

// IsSuccess reports whether the step ran and returned no error.
func (r *Result) IsSuccess() bool {
	return r.State == Completed && r.Error == nil
}

// Narrator receives step banners. *narrator.Narrator satisfies it.
type Narrator interface {
	Announce(step int, title, note string)
	Complete(step int, message string)
	Skip(step int, title, reason string)
}

// Metrics holds step counters. Create it once per registry and share it
// across sequences.
type Metrics struct {
	steps   metrics.CounterVec
	lastRun metrics.Gauge
}

// NewMetrics registers the sequence metrics with r.
func NewMetrics(r metrics.Registry) (*Metrics, error) {
	steps, err := r.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_steps_total",
		Help: "Steps finished, by result",
	}, []string{"result"})
	if err != nil {
		return nil, err
	}
	lastRun, err := r.NewGauge(prometheus.GaugeOpts{
		Name: "workflow_last_run_timestamp_seconds",
		Help: "Unix time the last sequence finished",
	})
	if err != nil {
		return nil, err
	}
	return &Metrics{steps: steps, lastRun: lastRun}, nil
}

// Option configures a Sequence.
type Option func(*Sequence)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sequence) {
		s.logger = logger
	}
}

// WithNarrator enables step banners.
func WithNarrator(n Narrator) Option {
	return func(s *Sequence) {
		s.narrator = n
	}
}

// WithMetrics enables step metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Sequence) {
		s.metrics = m
	}
}

// Sequence runs steps one after another.
type Sequence struct {
	logger   *slog.Logger
	narrator Narrator
	metrics  *Metrics

	steps   []Step
	mu      sync.RWMutex
	results map[int]*Result
}

// NewSequence creates an empty Sequence.
func NewSequence(opts ...Option) *Sequence {
	s := &Sequence{
		logger:  slog.Default(),
		results: make(map[int]*Result),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add appends steps. Step numbers must be unique, every step needs a Run
// function, and Requires may only name steps added earlier.
// Results for added steps are available immediately in NotStarted state.
func (s *Sequence) Add(steps ...Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, step := range steps {
		if step.Run == nil {
			return fmt.Errorf("step %d (%s) has no Run function", step.Number, step.Title)
		}
		if _, exists := s.results[step.Number]; exists {
			return fmt.Errorf("duplicate step number %d", step.Number)
		}
		for _, req := range step.Requires {
			if _, ok := s.results[req]; !ok {
				return fmt.Errorf("step %d requires step %d which has not been added before it", step.Number, req)
			}
		}
		s.steps = append(s.steps, step)
		s.results[step.Number] = &Result{State: NotStarted}
	}
	return nil
}

// Execute runs every step in order. It returns nil when all steps that ran
// succeeded, otherwise an error joining each step failure. Skipped steps
// are not errors unless the context was cancelled.
func (s *Sequence) Execute(ctx context.Context) error {
	var errs []error

	for _, step := range s.steps {
		if err := ctx.Err(); err != nil {
			s.skip(step, fmt.Sprintf("cancelled: %v", err))
			errs = append(errs, fmt.Errorf("step %d (%s) not run: %w", step.Number, step.Title, err))
			continue
		}
		if missing := s.unmetRequirements(step); len(missing) > 0 {
			s.skip(step, fmt.Sprintf("skipped: requires step(s) %v to succeed", missing))
			continue
		}
		if err := s.run(ctx, step); err != nil {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", step.Number, step.Title, err))
		}
	}

	if s.metrics != nil {
		s.metrics.lastRun.Set(float64(time.Now().Unix()))
	}
	return errors.Join(errs...)
}

func (s *Sequence) run(ctx context.Context, step Step) error {
	start := time.Now()
	s.setResult(step.Number, &Result{State: Running, StartTime: start})
	if s.narrator != nil {
		note := step.Note
		if step.NoteFunc != nil {
			note = step.NoteFunc()
		}
		s.narrator.Announce(step.Number, step.Title, note)
	}
	s.logger.Debug("step started", "step", step.Number, "title", step.Title)

	msg, err := step.Run(ctx)

	s.setResult(step.Number, &Result{
		State:     Completed,
		Message:   msg,
		Error:     err,
		StartTime: start,
		EndTime:   time.Now(),
	})

	result := "succeeded"
	if err != nil {
		result = "failed"
		s.logger.Warn("step failed", "step", step.Number, "title", step.Title, "error", err)
		if msg == "" {
			msg = "❌ " + err.Error()
		} else {
			msg = msg + "\n❌ " + err.Error()
		}
	} else {
		s.logger.Debug("step completed", "step", step.Number, "title", step.Title, "duration", time.Since(start))
	}
	s.count(result)
	if s.narrator != nil {
		s.narrator.Complete(step.Number, msg)
	}
	return err
}

func (s *Sequence) skip(step Step, reason string) {
	s.setResult(step.Number, &Result{State: Skipped, Message: reason})
	s.logger.Info("step skipped", "step", step.Number, "title", step.Title, "reason", reason)
	s.count("skipped")
	if s.narrator != nil {
		s.narrator.Skip(step.Number, step.Title, reason)
	}
}

func (s *Sequence) unmetRequirements(step Step) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var missing []int
	for _, req := range step.Requires {
		if r := s.results[req]; r == nil || !r.IsSuccess() {
			missing = append(missing, req)
		}
	}
	slices.Sort(missing)
	return missing
}

func (s *Sequence) count(result string) {
	if s.metrics != nil {
		s.metrics.steps.With(prometheus.Labels{"result": result}).Inc()
	}
}

func (s *Sequence) setResult(n int, r *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[n] = r
}

// Result returns a copy of the result for step n, or nil if there is no such step.
func (s *Sequence) Result(n int) *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[n]
	if !ok {
		return nil
	}
	c := *r
	return &c
}

// GetAllResults returns a copy of every step result keyed by step number.
func (s *Sequence) GetAllResults() map[int]*Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int]*Result, len(s.results))
	for n, r := range s.results {
		c := *r
		out[n] = &c
	}
	return out
}
