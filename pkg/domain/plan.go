package domain

import "math"

// StepKind distinguishes liquid-moving cycles from gas handling steps.
type StepKind string

const (
	// StepCycle is one draw-from-source / dispense-to-target pump cycle.
	StepCycle StepKind = "cycle"
	// StepPurge is a gas purge or pressure-equalization step. It moves no
	// ledger volume but must be actuated in order like any other step.
	StepPurge StepKind = "purge"
)

// Step is one planned device actuation. Steps execute strictly in order;
// no step begins until the previous step's acknowledgement arrived.
type Step struct {
	Seq    int      `json:"seq"`
	Kind   StepKind `json:"kind"`
	Device string   `json:"device"`

	// Source and Target are vessel names for ledger accounting. Purge
	// steps leave Target empty or point it at the purged vessel.
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`

	SourcePort int `json:"source_port"`
	TargetPort int `json:"target_port"`

	// Volume is the liquid (or gas) volume this step moves, in mL.
	Volume float64 `json:"volume"`

	DrawRate     float64 `json:"draw_rate,omitempty"`
	DispenseRate float64 `json:"dispense_rate,omitempty"`
}

// TransferPlan is the concrete actuation sequence for one logical
// transfer request. It is immutable once computed, owned solely by the
// call that requested it, and discarded after execution or failure.
type TransferPlan struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Volume float64 `json:"volume"`

	// Chained is true when no single device bridges source and target and
	// the plan relays through an intermediate vessel. Callers that require
	// exactness can reject chained plans before executing them.
	Chained      bool   `json:"chained,omitempty"`
	Intermediate string `json:"intermediate,omitempty"`

	Steps []Step `json:"steps"`
}

// Cycles returns the number of liquid-moving cycles in the plan,
// excluding purge steps.
func (p *TransferPlan) Cycles() int {
	n := 0
	for _, s := range p.Steps {
		if s.Kind == StepCycle {
			n++
		}
	}
	return n
}

// SplitCycles computes the per-cycle volumes for moving total with a
// syringe of the given capacity: ceil(total/capacity) cycles, all at
// capacity except a smaller final remainder.
func SplitCycles(total, capacity float64) []float64 {
	if capacity <= 0 || total <= 0 {
		return nil
	}
	n := int(math.Ceil(total / capacity))
	cycles := make([]float64, 0, n)
	remaining := total
	for i := 0; i < n; i++ {
		v := math.Min(capacity, remaining)
		if v <= 0 {
			break
		}
		cycles = append(cycles, v)
		remaining -= v
	}
	return cycles
}
