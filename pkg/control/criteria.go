package control

import (
	"fmt"
	"time"

	"github.com/openfluidics/syrinx/pkg/domain"
)

// Criterion decides whether a monitoring loop has reached its goal.
// Evaluate sees the full sample history in acquisition order and is
// called once per iteration, after the newest sample is appended.
type Criterion interface {
	// Evaluate reports whether the run has converged.
	Evaluate(history []domain.Measurement) bool

	// Describe returns a short operator-facing summary of the goal.
	Describe() string
}

// Threshold converges when the newest value crosses Target from below.
// Consecutive optionally requires that many samples at or above Target
// in a row; zero means one is enough.
type Threshold struct {
	Target      float64
	Consecutive int
}

// Evaluate implements Criterion.
func (c Threshold) Evaluate(history []domain.Measurement) bool {
	need := c.Consecutive
	if need < 1 {
		need = 1
	}
	if len(history) < need {
		return false
	}
	for _, m := range history[len(history)-need:] {
		if m.Value < c.Target {
			return false
		}
	}
	return true
}

// Describe implements Criterion.
func (c Threshold) Describe() string {
	if c.Consecutive > 1 {
		return fmt.Sprintf("value >= %g for %d consecutive samples", c.Target, c.Consecutive)
	}
	return fmt.Sprintf("value >= %g", c.Target)
}

// NoiseConvergence converges when the trailing Window samples have
// settled: their variance is at or below MaxVariance. Used for
// purification, where the signal decays toward the baseline instead of
// crossing a known target, and residual noise marks the end point.
type NoiseConvergence struct {
	Window      int
	MaxVariance float64
}

// Evaluate implements Criterion.
func (c NoiseConvergence) Evaluate(history []domain.Measurement) bool {
	window := c.Window
	if window < 2 {
		window = 2
	}
	if len(history) < window {
		return false
	}
	tail := history[len(history)-window:]
	var mean float64
	for _, m := range tail {
		mean += m.Value
	}
	mean /= float64(len(tail))
	var variance float64
	for _, m := range tail {
		d := m.Value - mean
		variance += d * d
	}
	variance /= float64(len(tail))
	return variance <= c.MaxVariance
}

// Describe implements Criterion.
func (c NoiseConvergence) Describe() string {
	return fmt.Sprintf("variance <= %g over last %d samples", c.MaxVariance, c.Window)
}

// TimeBound converges once the run has been sampling for at least
// Duration. It never looks at the values; pair it with a fixed-length
// protocol step such as a timed dialysis.
type TimeBound struct {
	Duration time.Duration
}

// Evaluate implements Criterion.
func (c TimeBound) Evaluate(history []domain.Measurement) bool {
	if len(history) < 2 {
		return false
	}
	elapsed := history[len(history)-1].TakenAt.Sub(history[0].TakenAt)
	return elapsed >= c.Duration
}

// Describe implements Criterion.
func (c TimeBound) Describe() string {
	return fmt.Sprintf("elapsed >= %s", c.Duration)
}
