package topology

import (
	"fmt"
	"sort"
	"sync"

	"github.com/openfluidics/syrinx/pkg/domain"
)

// Graph is the immutable-after-load model of devices, vessels and their
// typed physical links. Vessel ledgers are the only mutable state; the
// graph itself is never modified after New returns.
type Graph struct {
	vessels map[string]*domain.Vessel
	devices map[string]*domain.Device
	links   []domain.Link

	// intermediates are the designated relay vessels for two-hop
	// transfers, in designation order.
	intermediates []string

	tieBreak TieBreak

	// holding tracks the content label each pump last moved. Runtime
	// bookkeeping for the routing tie-break, not part of the topology.
	mu      sync.RWMutex
	holding map[string]string
}

// TieBreak selects the policy applied when several devices offer the same
// direct path.
type TieBreak int

const (
	// TieBreakNone surfaces AmbiguousPathError on multiple candidates.
	TieBreakNone TieBreak = iota
	// TieBreakContentOrdinal prefers the device already holding liquid
	// matching the target content label, then the lowest load-time
	// ordinal. Deterministic and stable.
	TieBreakContentOrdinal
)

// Option configures graph construction.
type Option func(*Graph)

// WithIntermediates designates vessels (e.g. waste or a shared reservoir)
// that two-hop transfers may relay through, in preference order.
func WithIntermediates(names ...string) Option {
	return func(g *Graph) {
		g.intermediates = append(g.intermediates, names...)
	}
}

// WithTieBreak sets the routing tie-break policy.
func WithTieBreak(tb TieBreak) Option {
	return func(g *Graph) {
		g.tieBreak = tb
	}
}

// New builds and validates a topology graph. Device ordinals are assigned
// from slice order, links are checked for dangling endpoints and port
// exclusivity, and each device's port map is populated.
func New(vessels []*domain.Vessel, devices []*domain.Device, links []domain.Link, opts ...Option) (*Graph, error) {
	g := &Graph{
		vessels: make(map[string]*domain.Vessel, len(vessels)),
		devices: make(map[string]*domain.Device, len(devices)),
		links:   links,
		holding: make(map[string]string),
	}
	for _, opt := range opts {
		opt(g)
	}

	for _, v := range vessels {
		if _, dup := g.vessels[v.Name]; dup {
			return nil, &domain.ValidationError{Reason: fmt.Sprintf("duplicate vessel name %q", v.Name)}
		}
		g.vessels[v.Name] = v
	}
	for i, d := range devices {
		if _, dup := g.devices[d.Name]; dup {
			return nil, &domain.ValidationError{Reason: fmt.Sprintf("duplicate device name %q", d.Name)}
		}
		if _, clash := g.vessels[d.Name]; clash {
			return nil, &domain.ValidationError{Reason: fmt.Sprintf("node name %q used by both a vessel and a device", d.Name)}
		}
		d.Ordinal = i
		if d.Ports == nil {
			d.Ports = make(map[int]string)
		}
		if d.GasPorts == nil {
			d.GasPorts = make(map[int]bool)
		}
		g.devices[d.Name] = d
	}

	for _, l := range links {
		dev, ok := g.devices[l.Source]
		if !ok {
			return nil, &domain.ValidationError{Reason: fmt.Sprintf("link source %q is not a device", l.Source)}
		}
		if !g.nodeExists(l.Target) {
			return nil, &domain.ValidationError{Reason: fmt.Sprintf("link target %q does not exist", l.Target)}
		}
		if l.Type == domain.LinkThermal {
			// Thermal couplings are not flow paths and claim no port, so
			// the port-exclusivity rule below does not apply to them. A
			// port number on one is a topology mistake, not a routable link.
			if l.SourcePort != 0 {
				return nil, &domain.ValidationError{Reason: fmt.Sprintf("thermal link %s->%s must not name a port", l.Source, l.Target)}
			}
			continue
		}
		if existing, taken := dev.Ports[l.SourcePort]; taken {
			return nil, &domain.ValidationError{Reason: fmt.Sprintf("device %s port %d already linked to %s", l.Source, l.SourcePort, existing)}
		}
		dev.Ports[l.SourcePort] = l.Target
		if l.Type == domain.LinkGas {
			dev.GasPorts[l.SourcePort] = true
		}
	}

	for _, name := range g.intermediates {
		v, ok := g.vessels[name]
		if !ok {
			return nil, &domain.ValidationError{Reason: fmt.Sprintf("intermediate %q is not a vessel", name)}
		}
		if !v.Addable || !v.Removable {
			return nil, &domain.ValidationError{Reason: fmt.Sprintf("intermediate %q must be both addable and removable", name)}
		}
	}

	return g, nil
}

func (g *Graph) nodeExists(name string) bool {
	if _, ok := g.vessels[name]; ok {
		return true
	}
	_, ok := g.devices[name]
	return ok
}

// Vessel returns the named vessel or nil.
func (g *Graph) Vessel(name string) *domain.Vessel {
	return g.vessels[name]
}

// Device returns the named device or nil.
func (g *Graph) Device(name string) *domain.Device {
	return g.devices[name]
}

// Vessels returns snapshots of every vessel, sorted by name.
func (g *Graph) Vessels() []domain.VesselSnapshot {
	out := make([]domain.VesselSnapshot, 0, len(g.vessels))
	for _, v := range g.vessels {
		out = append(out, v.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Devices returns every device, sorted by ordinal.
func (g *Graph) Devices() []*domain.Device {
	out := make([]*domain.Device, 0, len(g.devices))
	for _, d := range g.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out
}

// Links returns the raw link list as loaded.
func (g *Graph) Links() []domain.Link {
	return g.links
}

// GasBlanketed reports whether the vessel sits on an inert-gas line.
// Transfers touching such a vessel need pressure equalization when the
// bridging device shares a gas manifold.
func (g *Graph) GasBlanketed(vessel string) bool {
	for _, l := range g.links {
		if l.Type == domain.LinkGas && l.Target == vessel {
			return true
		}
	}
	return false
}

// NoteHolding records the content label a device last moved.
func (g *Graph) NoteHolding(device, content string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.holding[device] = content
}

// Holding returns the content label a device last moved, or "".
func (g *Graph) Holding(device string) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.holding[device]
}
