package router

import (
	"context"
	"log/slog"

	"github.com/openfluidics/syrinx/internal/logging"
	"github.com/openfluidics/syrinx/internal/metrics"
	"github.com/openfluidics/syrinx/pkg/domain"
	"github.com/openfluidics/syrinx/pkg/topology"
)

// Actuator is the slice of the device facade the executor needs.
type Actuator interface {
	Draw(ctx context.Context, device string, port int, volume, rate float64) error
	Dispense(ctx context.Context, device string, port int, volume, rate float64) error
}

// Executor runs transfer plans against an actuator, applying ledger
// updates transactionally per acknowledged step.
type Executor struct {
	graph    *topology.Graph
	actuator Actuator
	logger   *slog.Logger
}

// ExecutorOption configures the executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets a structured logger.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// NewExecutor creates an executor over the graph and actuator.
func NewExecutor(graph *topology.Graph, actuator Actuator, opts ...ExecutorOption) *Executor {
	e := &Executor{
		graph:    graph,
		actuator: actuator,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecutePlan actuates every step strictly in order; no step begins until
// the previous step's acknowledgement arrived. The vessel ledger is
// updated after each acknowledged half-cycle under a short per-vessel
// lock, so a mid-plan failure leaves the model matching the liquid's real
// location. Volumes already moved stay where they are: blind reversal
// would be a second irreversible physical action.
//
// An outcome is returned for every execution. On failure the error is a
// *domain.PartialTransferError carrying the volume actually delivered.
func (e *Executor) ExecutePlan(ctx context.Context, plan *domain.TransferPlan) (domain.TransferOutcome, error) {
	outcome := domain.TransferOutcome{
		Status:       domain.TransferCompleted,
		Source:       plan.Source,
		Target:       plan.Target,
		Requested:    plan.Volume,
		StepsPlanned: len(plan.Steps),
	}

	for _, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return e.fail(outcome, plan, err)
		}

		var err error
		switch step.Kind {
		case domain.StepPurge:
			err = e.runPurge(ctx, step)
		default:
			err = e.runCycle(ctx, step, &outcome)
		}
		if err != nil {
			return e.fail(outcome, plan, err)
		}
		outcome.StepsCompleted++
	}

	metrics.Transfers.WithLabelValues(string(domain.TransferCompleted)).Inc()
	e.logger.Info("transfer completed",
		"source", plan.Source, "target", plan.Target,
		"volume", outcome.VolumeMoved, "steps", outcome.StepsCompleted)
	return outcome, nil
}

// runCycle performs one draw/dispense cycle. The source ledger is
// debited once the draw is acknowledged (the liquid has left the vessel),
// the target credited once the dispense is acknowledged.
func (e *Executor) runCycle(ctx context.Context, step domain.Step, outcome *domain.TransferOutcome) error {
	if err := e.actuator.Draw(ctx, step.Device, step.SourcePort, step.Volume, step.DrawRate); err != nil {
		return err
	}
	src := e.graph.Vessel(step.Source)
	if err := src.Withdraw(step.Volume); err != nil {
		return err
	}

	if err := e.actuator.Dispense(ctx, step.Device, step.TargetPort, step.Volume, step.DispenseRate); err != nil {
		return err
	}
	tgt := e.graph.Vessel(step.Target)
	if err := tgt.Deposit(step.Volume); err != nil {
		return err
	}

	outcome.VolumeMoved += step.Volume
	metrics.VolumeMoved.Add(step.Volume)
	e.graph.NoteHolding(step.Device, src.Content)
	return nil
}

// runPurge pushes gas through the manifold. No ledger volume moves.
func (e *Executor) runPurge(ctx context.Context, step domain.Step) error {
	if err := e.actuator.Draw(ctx, step.Device, step.SourcePort, step.Volume, step.DrawRate); err != nil {
		return err
	}
	return e.actuator.Dispense(ctx, step.Device, step.TargetPort, step.Volume, step.DispenseRate)
}

func (e *Executor) fail(outcome domain.TransferOutcome, plan *domain.TransferPlan, cause error) (domain.TransferOutcome, error) {
	outcome.Status = domain.TransferPartial
	outcome.Cause = cause.Error()
	metrics.Transfers.WithLabelValues(string(domain.TransferPartial)).Inc()
	e.logger.Error("transfer aborted",
		"source", plan.Source, "target", plan.Target,
		"completed", outcome.StepsCompleted, "planned", outcome.StepsPlanned,
		"moved", outcome.VolumeMoved, "err", cause)
	return outcome, &domain.PartialTransferError{
		Source:         plan.Source,
		Target:         plan.Target,
		StepsCompleted: outcome.StepsCompleted,
		StepsPlanned:   outcome.StepsPlanned,
		Moved:          outcome.VolumeMoved,
		Cause:          cause,
	}
}
