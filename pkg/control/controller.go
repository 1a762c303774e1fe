// Package control implements the closed-loop monitoring controller: a
// sample-evaluate-decide loop that drives a physical process phase until
// a stopping criterion converges, a hard time ceiling passes, or the
// hardware fails.
package control

import (
	"context"
	"log/slog"
	"time"

	"github.com/openfluidics/syrinx/internal/logging"
	"github.com/openfluidics/syrinx/internal/metrics"
	"github.com/openfluidics/syrinx/pkg/domain"
	"github.com/openfluidics/syrinx/pkg/ports"
)

// Status is the terminal state of a monitoring loop. Expected endings
// (converged, timeout, aborted) are statuses, not errors.
type Status string

const (
	StatusConverged Status = "STOP_CONVERGED"
	StatusTimeout   Status = "STOP_TIMEOUT"
	StatusError     Status = "STOP_ERROR"
	StatusAborted   Status = "STOP_ABORTED"
)

// Outcome is the structured result of one monitoring session.
type Outcome struct {
	Status     Status
	Iterations int
	History    []domain.Measurement
	Elapsed    time.Duration
	// Cause is set when Status == StatusError.
	Cause error
}

// StoppingState accumulates the sample history a criterion evaluates.
type StoppingState struct {
	History []domain.Measurement
}

// Append records one sample.
func (s *StoppingState) Append(m domain.Measurement) {
	s.History = append(s.History, m)
}

// Controller runs one long-lived monitoring loop per active physical
// process. Contention on shared hardware is not its concern; that
// serializes at the bus lock underneath the actuation layer.
type Controller struct {
	source    ports.MeasurementSource
	criterion Criterion
	interval  time.Duration
	ceiling   time.Duration
	phase     string
	logger    *slog.Logger
	abort     <-chan struct{}
	onSample  func(domain.Measurement, int)
	clock     func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithInterval sets the wait between iterations.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) { c.interval = d }
}

// WithCeiling sets the hard elapsed-time limit. Zero means no ceiling.
func WithCeiling(d time.Duration) Option {
	return func(c *Controller) { c.ceiling = d }
}

// WithPhase labels the loop for logs and metrics.
func WithPhase(phase string) Option {
	return func(c *Controller) { c.phase = phase }
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithAbort installs an external abort signal, observed between
// iterations. An in-flight sample is allowed to finish first.
func WithAbort(ch <-chan struct{}) Option {
	return func(c *Controller) { c.abort = ch }
}

// WithSampleHook installs a callback invoked after each appended sample,
// receiving the sample and the iteration count so far. Used to persist
// run records as the loop progresses.
func WithSampleHook(fn func(domain.Measurement, int)) Option {
	return func(c *Controller) { c.onSample = fn }
}

// withClock overrides time measurement in tests.
func withClock(now func() time.Time) Option {
	return func(c *Controller) { c.clock = now }
}

// New creates a Controller over a measurement source and a criterion.
func New(source ports.MeasurementSource, criterion Criterion, opts ...Option) *Controller {
	c := &Controller{
		source:    source,
		criterion: criterion,
		interval:  30 * time.Second,
		phase:     "monitor",
		logger:    logging.NewNop(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the loop until a terminal state is reached. Each
// iteration waits the configured interval, takes one sample, appends it
// to the stopping state, and evaluates the criterion. The abort signal
// and context are checked at the suspension points only, never
// mid-command. The returned Outcome is a value for every expected
// ending; only StatusError carries a cause.
func (c *Controller) Run(ctx context.Context) Outcome {
	state := &StoppingState{}
	start := c.clock()
	iterations := 0

	c.logger.Info("monitoring started",
		"phase", c.phase, "criterion", c.criterion.Describe(),
		"interval", c.interval, "ceiling", c.ceiling)

	finish := func(status Status, cause error) Outcome {
		out := Outcome{
			Status:     status,
			Iterations: iterations,
			History:    state.History,
			Elapsed:    c.clock().Sub(start),
			Cause:      cause,
		}
		c.logger.Info("monitoring finished",
			"phase", c.phase, "status", status,
			"iterations", iterations, "elapsed", out.Elapsed)
		return out
	}

	for {
		if status, done := c.wait(ctx); done {
			return finish(status, ctx.Err())
		}

		sample, err := c.source.Sample(ctx)
		if err != nil {
			// A hardware or instrument failure must surface, never be
			// masked as "keep waiting".
			c.logger.Error("measurement failed", "phase", c.phase, "err", err)
			return finish(StatusError, err)
		}

		state.Append(sample)
		iterations++
		metrics.ControllerIterations.WithLabelValues(c.phase).Inc()
		c.logger.Debug("sample taken",
			"phase", c.phase, "iteration", iterations,
			"value", sample.Value, "unit", sample.Unit)
		if c.onSample != nil {
			c.onSample(sample, iterations)
		}

		if c.criterion.Evaluate(state.History) {
			return finish(StatusConverged, nil)
		}
		if c.ceiling > 0 && c.clock().Sub(start) >= c.ceiling {
			return finish(StatusTimeout, nil)
		}
	}
}

// wait blocks for the sampling interval, watching the abort signal and
// the context. It reports the terminal status when the loop must end.
func (c *Controller) wait(ctx context.Context) (Status, bool) {
	select {
	case <-ctx.Done():
		return StatusError, true
	case <-c.abort:
		return StatusAborted, true
	default:
	}

	if c.interval <= 0 {
		return "", false
	}

	timer := time.NewTimer(c.interval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return "", false
	case <-c.abort:
		return StatusAborted, true
	case <-ctx.Done():
		return StatusError, true
	}
}
