package domain

import (
	"fmt"
	"sync"
)

// Vessel is a container node. Its current volume is the only mutable state
// in the topology after load; it is the "ledger" mutated transactionally
// by executed plan steps.
//
// The invariant 0 <= current <= MaxVolume always holds. The lock is held
// only for the duration of a ledger update, never for the duration of
// physical actuation.
type Vessel struct {
	Name string
	// MaxVolume is the capacity in mL.
	MaxVolume float64
	// Addable permits transfers into the vessel.
	Addable bool
	// Removable permits transfers out of the vessel.
	Removable bool
	// Content labels what the vessel holds (e.g. "monomer", "waste").
	Content string

	mu      sync.Mutex
	current float64
}

// NewVessel creates a vessel with an initial fill level.
func NewVessel(name string, maxVolume, current float64, addable, removable bool, content string) (*Vessel, error) {
	if current < 0 || current > maxVolume {
		return nil, &ValidationError{Reason: fmt.Sprintf("vessel %s: initial volume %.3g outside [0, %.3g]", name, current, maxVolume)}
	}
	return &Vessel{
		Name:      name,
		MaxVolume: maxVolume,
		Addable:   addable,
		Removable: removable,
		Content:   content,
		current:   current,
	}, nil
}

// CurrentVolume returns the ledger volume in mL.
func (v *Vessel) CurrentVolume() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Headroom returns how much more liquid the vessel can take.
func (v *Vessel) Headroom() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.MaxVolume - v.current
}

// Withdraw removes volume from the ledger. It never drives the ledger
// negative; callers validate before actuating, so a failure here means the
// model and the physical world have diverged.
func (v *Vessel) Withdraw(volume float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if volume < 0 {
		return &ValidationError{Reason: fmt.Sprintf("vessel %s: negative withdrawal %.3g", v.Name, volume)}
	}
	if v.current-volume < 0 {
		return &ValidationError{Reason: fmt.Sprintf("vessel %s: withdrawal %.3g exceeds current volume %.3g", v.Name, volume, v.current)}
	}
	v.current -= volume
	return nil
}

// Deposit adds volume to the ledger, enforcing the capacity invariant.
func (v *Vessel) Deposit(volume float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if volume < 0 {
		return &ValidationError{Reason: fmt.Sprintf("vessel %s: negative deposit %.3g", v.Name, volume)}
	}
	if v.current+volume > v.MaxVolume {
		return &ValidationError{Reason: fmt.Sprintf("vessel %s: deposit %.3g exceeds capacity %.3g", v.Name, volume, v.MaxVolume)}
	}
	v.current += volume
	return nil
}

// VesselSnapshot is an immutable copy of a vessel's state for reporting.
type VesselSnapshot struct {
	Name          string  `json:"name"`
	MaxVolume     float64 `json:"max_volume"`
	CurrentVolume float64 `json:"current_volume"`
	Addable       bool    `json:"addable"`
	Removable     bool    `json:"removable"`
	Content       string  `json:"content,omitempty"`
}

// Snapshot returns a point-in-time copy of the vessel state.
func (v *Vessel) Snapshot() VesselSnapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return VesselSnapshot{
		Name:          v.Name,
		MaxVolume:     v.MaxVolume,
		CurrentVolume: v.current,
		Addable:       v.Addable,
		Removable:     v.Removable,
		Content:       v.Content,
	}
}
