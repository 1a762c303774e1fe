// Package workflow composes the transfer router, device facade and
// closed-loop controller into the platform's protocol phases: priming,
// deoxygenation, the monitored reaction, purification, functionalization,
// precipitation and cleaning.
package workflow

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/openfluidics/syrinx/internal/logging"
	"github.com/openfluidics/syrinx/pkg/control"
	"github.com/openfluidics/syrinx/pkg/domain"
	"github.com/openfluidics/syrinx/pkg/ports"
	"github.com/openfluidics/syrinx/pkg/session"
)

// Actuator is the slice of the device facade the phases need beyond
// liquid transfers.
type Actuator interface {
	SetTemperature(ctx context.Context, name string, target float64) error
	SetStir(ctx context.Context, name string, rpm int) error
	SetBinaryOutput(ctx context.Context, name string, on bool) error
	RunContinuous(ctx context.Context, name string, rate float64, duration time.Duration) error
}

// Transferer plans and executes one vessel-to-vessel transfer.
type Transferer interface {
	Transfer(ctx context.Context, source, target string, volume float64) (domain.TransferOutcome, error)
}

// Workflow drives protocol phases against one rig.
type Workflow struct {
	actuator   Actuator
	transferer Transferer
	runs       *session.Manager
	logger     *slog.Logger
}

// Option configures the workflow.
type Option func(*Workflow)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) { w.logger = logger }
}

// New creates a workflow over the actuator and transferer. The run
// manager may be nil when no persistence is wanted.
func New(actuator Actuator, transferer Transferer, runs *session.Manager, opts ...Option) *Workflow {
	w := &Workflow{
		actuator:   actuator,
		transferer: transferer,
		runs:       runs,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Prime fills the tubing of every listed source by pushing a small
// volume through to the waste vessel. A failed line aborts priming: a
// half-primed rig delivers short volumes on every later transfer.
func (w *Workflow) Prime(ctx context.Context, sources []string, waste string, volume float64) error {
	for _, src := range sources {
		w.logger.Info("priming line", "source", src, "volume", volume)
		if _, err := w.transferer.Transfer(ctx, src, waste, volume); err != nil {
			return fmt.Errorf("priming %s: %w", src, err)
		}
	}
	return nil
}

// Deoxygenate opens the inert-gas relay for the given duration. The
// relay is closed again on every exit path; leaving the gas line open
// vents the supply and over-pressurizes the vessel.
func (w *Workflow) Deoxygenate(ctx context.Context, relay string, duration time.Duration) (err error) {
	if err := w.actuator.SetBinaryOutput(ctx, relay, true); err != nil {
		return fmt.Errorf("opening gas relay %s: %w", relay, err)
	}
	defer func() {
		// Use a fresh context: the close must go out even when the
		// caller's context is the reason we are exiting.
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if cerr := w.actuator.SetBinaryOutput(closeCtx, relay, false); cerr != nil && err == nil {
			err = fmt.Errorf("closing gas relay %s: %w", relay, cerr)
		}
	}()

	w.logger.Info("deoxygenating", "relay", relay, "duration", duration)
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReactionSpec configures the monitored polymerization phase.
type ReactionSpec struct {
	Thermostat  string
	Temperature float64
	StirRPM     int

	Source      ports.MeasurementSource
	Target      float64 // conversion threshold, e.g. 80
	Consecutive int
	Interval    time.Duration
	Ceiling     time.Duration

	// StandbyTemperature is set when the loop ends, converged or not.
	StandbyTemperature float64
}

// Reaction heats and stirs, then monitors conversion until the
// threshold criterion converges or the ceiling passes. Whatever the
// outcome, the hotplate is returned to standby and stirring stopped;
// an unattended reactor must never stay hot.
func (w *Workflow) Reaction(ctx context.Context, spec ReactionSpec) (control.Outcome, error) {
	if err := w.actuator.SetTemperature(ctx, spec.Thermostat, spec.Temperature); err != nil {
		return control.Outcome{}, err
	}
	if err := w.actuator.SetStir(ctx, spec.Thermostat, spec.StirRPM); err != nil {
		return control.Outcome{}, err
	}

	outcome := w.monitor(ctx, "reaction", spec.Source,
		control.Threshold{Target: spec.Target, Consecutive: spec.Consecutive},
		spec.Interval, spec.Ceiling)

	standbyCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	standby := spec.StandbyTemperature
	if standby <= 0 {
		standby = 25
	}
	if err := w.actuator.SetTemperature(standbyCtx, spec.Thermostat, standby); err != nil {
		return outcome, fmt.Errorf("reaction standby: %w", err)
	}
	if err := w.actuator.SetStir(standbyCtx, spec.Thermostat, 0); err != nil {
		return outcome, fmt.Errorf("reaction standby: %w", err)
	}
	return outcome, nil
}

// PurifySpec configures the dialysis phase.
type PurifySpec struct {
	Pump string
	Rate float64

	Source      ports.MeasurementSource
	Window      int
	MaxVariance float64
	Interval    time.Duration
	Ceiling     time.Duration
}

// Purify runs the dialysis pump and monitors the residual monomer
// signal until it settles into noise. The pump run is bounded by the
// ceiling, so a monitoring failure cannot leave it spinning forever.
func (w *Workflow) Purify(ctx context.Context, spec PurifySpec) (control.Outcome, error) {
	if err := w.actuator.RunContinuous(ctx, spec.Pump, spec.Rate, spec.Ceiling); err != nil {
		return control.Outcome{}, err
	}

	outcome := w.monitor(ctx, "purification", spec.Source,
		control.NoiseConvergence{Window: spec.Window, MaxVariance: spec.MaxVariance},
		spec.Interval, spec.Ceiling)

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := w.actuator.RunContinuous(stopCtx, spec.Pump, spec.Rate, 0); err != nil {
		return outcome, fmt.Errorf("stopping dialysis pump: %w", err)
	}
	return outcome, nil
}

// ModifySpec configures the post-polymerization functionalization phase.
type ModifySpec struct {
	Reagent string // reagent stock vessel
	Reactor string
	Volume  float64

	// Source feeds the absorbance signal; the phase ends when it
	// settles into noise.
	Source      ports.MeasurementSource
	Window      int
	MaxVariance float64
	Interval    time.Duration
	Ceiling     time.Duration

	// Dialysis, when set, purifies the modified polymer after the
	// absorbance has settled. Skipped unless the monitoring converged.
	Dialysis *PurifySpec
}

// Modify adds the functionalization reagent to the reactor and monitors
// the absorbance signal until it stabilizes, then optionally runs the
// dialysis phase on the result. The dialysis loop is recorded under its
// own run; the returned outcome is always the modification loop's.
func (w *Workflow) Modify(ctx context.Context, spec ModifySpec) (control.Outcome, error) {
	w.logger.Info("adding modification reagent",
		"reagent", spec.Reagent, "reactor", spec.Reactor, "volume", spec.Volume)
	if _, err := w.transferer.Transfer(ctx, spec.Reagent, spec.Reactor, spec.Volume); err != nil {
		return control.Outcome{}, fmt.Errorf("adding modification reagent: %w", err)
	}

	outcome := w.monitor(ctx, "modification", spec.Source,
		control.NoiseConvergence{Window: spec.Window, MaxVariance: spec.MaxVariance},
		spec.Interval, spec.Ceiling)

	if spec.Dialysis != nil && outcome.Status == control.StatusConverged {
		if _, err := w.Purify(ctx, *spec.Dialysis); err != nil {
			return outcome, fmt.Errorf("post-modification dialysis: %w", err)
		}
	}
	return outcome, nil
}

// PrecipitateSpec configures the precipitation and washing phase.
type PrecipitateSpec struct {
	NonSolvent string // chilled non-solvent stock vessel
	Reactor    string
	Vessel     string // precipitation vessel
	Waste      string

	NonSolventVolume float64
	PolymerVolume    float64
	// SupernatantExtra is removed on top of the non-solvent volume so
	// the settled polymer is never drawn back up. Defaults to 5 mL.
	SupernatantExtra float64

	// GasRelay sparges inert gas through the vessel to mix each batch;
	// SolenoidRelay switches the vessel's bottom port between the gas
	// line and the pump.
	GasRelay      string
	SolenoidRelay string
	Soak          time.Duration

	// Washes is the number of extra non-solvent wash cycles after the
	// first precipitation.
	Washes int
}

// Precipitate drops the polymer out of solution: non-solvent in, polymer
// in, inert-gas mixing, supernatant off to waste, then optional wash
// cycles. The solenoid relay is returned to the pump position on every
// exit path; leaving it on the gas line lets backpressure push liquid
// into the gas plumbing.
func (w *Workflow) Precipitate(ctx context.Context, spec PrecipitateSpec) (err error) {
	extra := spec.SupernatantExtra
	if extra <= 0 {
		extra = 5
	}

	if spec.SolenoidRelay != "" {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if cerr := w.actuator.SetBinaryOutput(closeCtx, spec.SolenoidRelay, false); cerr != nil && err == nil {
				err = fmt.Errorf("parking solenoid relay %s: %w", spec.SolenoidRelay, cerr)
			}
		}()
	}

	// sparge bubbles inert gas through the vessel's bottom port, with
	// the solenoid switched to the gas line only for the duration.
	sparge := func() error {
		if spec.SolenoidRelay != "" {
			if err := w.actuator.SetBinaryOutput(ctx, spec.SolenoidRelay, true); err != nil {
				return fmt.Errorf("switching solenoid relay %s: %w", spec.SolenoidRelay, err)
			}
		}
		if err := w.Deoxygenate(ctx, spec.GasRelay, spec.Soak); err != nil {
			return fmt.Errorf("sparging: %w", err)
		}
		if spec.SolenoidRelay != "" {
			if err := w.actuator.SetBinaryOutput(ctx, spec.SolenoidRelay, false); err != nil {
				return fmt.Errorf("switching solenoid relay %s: %w", spec.SolenoidRelay, err)
			}
		}
		return nil
	}

	settle := func() error {
		if err := sparge(); err != nil {
			return err
		}
		if _, err := w.transferer.Transfer(ctx, spec.Vessel, spec.Waste, spec.NonSolventVolume+extra); err != nil {
			return fmt.Errorf("removing supernatant: %w", err)
		}
		return nil
	}

	if _, err := w.transferer.Transfer(ctx, spec.NonSolvent, spec.Vessel, spec.NonSolventVolume); err != nil {
		return fmt.Errorf("adding non-solvent: %w", err)
	}
	if _, err := w.transferer.Transfer(ctx, spec.Reactor, spec.Vessel, spec.PolymerVolume); err != nil {
		return fmt.Errorf("transferring polymer: %w", err)
	}
	if err := settle(); err != nil {
		return err
	}

	for i := 0; i < spec.Washes; i++ {
		w.logger.Info("washing precipitate", "cycle", i+1, "non_solvent", spec.NonSolvent)
		if _, err := w.transferer.Transfer(ctx, spec.NonSolvent, spec.Vessel, spec.NonSolventVolume); err != nil {
			return fmt.Errorf("wash cycle %d: adding non-solvent: %w", i+1, err)
		}
		if err := settle(); err != nil {
			return fmt.Errorf("wash cycle %d: %w", i+1, err)
		}
	}
	return nil
}

// Clean flushes the lines by pushing solvent through to waste the given
// number of times.
func (w *Workflow) Clean(ctx context.Context, solvent, waste string, volume float64, repeats int) error {
	if repeats < 1 {
		repeats = 1
	}
	for i := 0; i < repeats; i++ {
		w.logger.Info("cleaning cycle", "cycle", i+1, "solvent", solvent, "volume", volume)
		if _, err := w.transferer.Transfer(ctx, solvent, waste, volume); err != nil {
			return fmt.Errorf("cleaning cycle %d: %w", i+1, err)
		}
	}
	return nil
}

// monitor runs one controller loop, persisting progress per sample when
// a run manager is configured.
func (w *Workflow) monitor(ctx context.Context, phase string, source ports.MeasurementSource, criterion control.Criterion, interval, ceiling time.Duration) control.Outcome {
	opts := []control.Option{
		control.WithPhase(phase),
		control.WithInterval(interval),
		control.WithCeiling(ceiling),
		control.WithLogger(w.logger),
	}

	var runID string
	if w.runs != nil {
		if rec, err := w.runs.Start(ctx, phase); err == nil {
			runID = rec.ID
			opts = append(opts, control.WithSampleHook(func(m domain.Measurement, n int) {
				_, _ = w.runs.Update(ctx, runID, func(r *domain.RunRecord) {
					r.Measurements = append(r.Measurements, m)
					r.Iterations = n
				})
			}))
		} else {
			w.logger.Warn("run persistence unavailable", "phase", phase, "err", err)
		}
	}

	outcome := control.New(source, criterion, opts...).Run(ctx)

	if runID != "" {
		status := statusFor(outcome.Status)
		cause := ""
		if outcome.Cause != nil {
			cause = outcome.Cause.Error()
		}
		_, _ = w.runs.Update(context.Background(), runID, func(r *domain.RunRecord) {
			r.Status = status
			r.Cause = cause
		})
	}
	return outcome
}

func statusFor(s control.Status) domain.RunStatus {
	switch s {
	case control.StatusConverged:
		return domain.RunConverged
	case control.StatusTimeout:
		return domain.RunTimeout
	case control.StatusAborted:
		return domain.RunAborted
	default:
		return domain.RunError
	}
}
