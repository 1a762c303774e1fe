// Package router turns abstract transfer requests into concrete,
// resource-respecting actuation plans, and executes them against the
// device facade. Planning never mutates vessel state; execution mutates
// it step-by-step so the model always reflects physical reality.
package router

import (
	"fmt"
	"log/slog"

	"github.com/openfluidics/syrinx/internal/logging"
	"github.com/openfluidics/syrinx/pkg/domain"
	"github.com/openfluidics/syrinx/pkg/topology"
)

// Router plans transfers over a topology graph.
type Router struct {
	graph  *topology.Graph
	logger *slog.Logger

	drawRate     float64
	dispenseRate float64
	purgeVolume  float64
}

// Option configures the router.
type Option func(*Router)

// WithRates sets the default draw and dispense rates in mL/s.
func WithRates(draw, dispense float64) Option {
	return func(r *Router) {
		r.drawRate = draw
		r.dispenseRate = dispense
	}
}

// WithPurgeVolume sets the gas volume used for pressure equalization.
func WithPurgeVolume(v float64) Option {
	return func(r *Router) { r.purgeVolume = v }
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// New creates a router over the graph.
func New(graph *topology.Graph, opts ...Option) *Router {
	r := &Router{
		graph:        graph,
		logger:       logging.NewNop(),
		drawRate:     0.1,
		dispenseRate: 0.1,
		purgeVolume:  2.0,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PlanOption adjusts a single transfer request.
type PlanOption func(*planRequest)

type planRequest struct {
	drawRate      float64
	dispenseRate  float64
	requireDirect bool
}

// AtRates overrides the default draw/dispense rates for this transfer.
func AtRates(draw, dispense float64) PlanOption {
	return func(p *planRequest) {
		p.drawRate = draw
		p.dispenseRate = dispense
	}
}

// RequireDirect rejects plans that would chain through an intermediate
// vessel, for callers that need exactness.
func RequireDirect() PlanOption {
	return func(p *planRequest) { p.requireDirect = true }
}

// PlanTransfer validates the request and computes the actuation plan.
// The plan is immutable once returned and owned solely by the caller.
//
// Validation happens entirely before any actuation: volume must be
// positive, the source must be removable and hold enough liquid, the
// target must be addable with enough headroom.
func (r *Router) PlanTransfer(source, target string, volume float64, opts ...PlanOption) (*domain.TransferPlan, error) {
	req := planRequest{drawRate: r.drawRate, dispenseRate: r.dispenseRate}
	for _, opt := range opts {
		opt(&req)
	}

	if volume <= 0 {
		return nil, &domain.ValidationError{Reason: fmt.Sprintf("volume must be positive, got %.3g", volume)}
	}
	src := r.graph.Vessel(source)
	if src == nil {
		return nil, &domain.ValidationError{Reason: "unknown source vessel " + source}
	}
	tgt := r.graph.Vessel(target)
	if tgt == nil {
		return nil, &domain.ValidationError{Reason: "unknown target vessel " + target}
	}
	if !src.Removable {
		return nil, &domain.ValidationError{Reason: "source vessel " + source + " is not removable"}
	}
	if !tgt.Addable {
		return nil, &domain.ValidationError{Reason: "target vessel " + target + " is not addable"}
	}
	if src.CurrentVolume() < volume {
		return nil, &domain.ValidationError{Reason: fmt.Sprintf("source %s holds %.3g mL, need %.3g", source, src.CurrentVolume(), volume)}
	}
	if tgt.Headroom() < volume {
		return nil, &domain.ValidationError{Reason: fmt.Sprintf("target %s has %.3g mL headroom, need %.3g", target, tgt.Headroom(), volume)}
	}

	path, err := r.graph.ResolvePath(source, target)
	if err != nil {
		return nil, err
	}
	if path.Chained() {
		if req.requireDirect {
			return nil, &domain.NoPathError{Source: source, Target: target}
		}
		via := r.graph.Vessel(path.Via)
		if via.Headroom() < volume {
			return nil, &domain.ValidationError{Reason: fmt.Sprintf("intermediate %s has %.3g mL headroom, need %.3g", path.Via, via.Headroom(), volume)}
		}
	}

	plan := &domain.TransferPlan{
		Source:       source,
		Target:       target,
		Volume:       volume,
		Chained:      path.Chained(),
		Intermediate: path.Via,
	}

	seq := 0
	from := source
	for i, hop := range path.Hops {
		to := target
		if path.Chained() && i == 0 {
			to = path.Via
		}
		r.appendHopSteps(plan, &seq, hop, from, to, volume, req)
		from = to
	}

	r.logger.Debug("planned transfer",
		"source", source, "target", target, "volume", volume,
		"steps", len(plan.Steps), "chained", plan.Chained)
	return plan, nil
}

// appendHopSteps emits the cycles for one hop, bracketed by gas
// purge/equalization steps when the endpoint is gas-blanketed and the
// device's port map shows a shared gas manifold. Skipping the purge on
// such a path risks a pressure lock.
func (r *Router) appendHopSteps(plan *domain.TransferPlan, seq *int, hop topology.Hop, from, to string, volume float64, req planRequest) {
	needsPurge := hop.Device.HasGasManifold() &&
		(r.graph.GasBlanketed(from) || r.graph.GasBlanketed(to))

	if needsPurge {
		plan.Steps = append(plan.Steps, r.purgeStep(seq, hop, to, req))
	}

	capacity := hop.Device.Capacity
	if capacity <= 0 {
		capacity = volume
	}
	for _, cycleVolume := range domain.SplitCycles(volume, capacity) {
		plan.Steps = append(plan.Steps, domain.Step{
			Seq:          nextSeq(seq),
			Kind:         domain.StepCycle,
			Device:       hop.Device.Name,
			Source:       from,
			Target:       to,
			SourcePort:   hop.SourcePort,
			TargetPort:   hop.TargetPort,
			Volume:       cycleVolume,
			DrawRate:     req.drawRate,
			DispenseRate: req.dispenseRate,
		})
	}

	if needsPurge {
		plan.Steps = append(plan.Steps, r.purgeStep(seq, hop, to, req))
	}
}

func (r *Router) purgeStep(seq *int, hop topology.Hop, to string, req planRequest) domain.Step {
	return domain.Step{
		Seq:          nextSeq(seq),
		Kind:         domain.StepPurge,
		Device:       hop.Device.Name,
		Target:       to,
		SourcePort:   gasPort(hop.Device),
		TargetPort:   hop.TargetPort,
		Volume:       r.purgeVolume,
		DrawRate:     req.drawRate,
		DispenseRate: req.dispenseRate,
	}
}

func nextSeq(seq *int) int {
	*seq++
	return *seq
}

// gasPort returns the lowest gas-manifold port of the device, or -1.
func gasPort(d *domain.Device) int {
	best := -1
	for port, gas := range d.GasPorts {
		if !gas {
			continue
		}
		if best < 0 || port < best {
			best = port
		}
	}
	return best
}
