package topology

import (
	"sort"

	"github.com/openfluidics/syrinx/pkg/domain"
)

// Hop is one device bridging two nodes: draw on SourcePort, dispense on
// TargetPort.
type Hop struct {
	Device     *domain.Device
	SourcePort int
	TargetPort int
}

// Path is a resolved route from source to target. Via names the
// intermediate vessel when the route chains two single-hop transfers;
// callers that require exactness reject paths with Via set.
type Path struct {
	Source string
	Target string
	Hops   []Hop
	Via    string
}

// Chained reports whether the path relays through an intermediate vessel.
func (p Path) Chained() bool { return p.Via != "" }

// ResolvePath finds the devices whose ports connect directly to both
// endpoints. A single-hop device is always preferred; when none exists,
// the resolver may chain two single-hop transfers through a designated
// intermediate vessel whose addable/removable flags permit transient use.
//
// Resolution is deterministic: the same topology and endpoints always
// yield the same device choice.
func (g *Graph) ResolvePath(source, target string) (Path, error) {
	if !g.nodeExists(source) {
		return Path{}, &domain.ValidationError{Reason: "unknown source node " + source}
	}
	if !g.nodeExists(target) {
		return Path{}, &domain.ValidationError{Reason: "unknown target node " + target}
	}

	if hop, err := g.directHop(source, target); err != nil {
		return Path{}, err
	} else if hop != nil {
		return Path{Source: source, Target: target, Hops: []Hop{*hop}}, nil
	}

	// One hop of chaining through a designated intermediate.
	for _, via := range g.intermediates {
		if via == source || via == target {
			continue
		}
		first, err := g.directHop(source, via)
		if err != nil || first == nil {
			continue
		}
		second, err := g.directHop(via, target)
		if err != nil || second == nil {
			continue
		}
		return Path{Source: source, Target: target, Hops: []Hop{*first, *second}, Via: via}, nil
	}

	return Path{}, &domain.NoPathError{Source: source, Target: target}
}

// directHop returns the single device bridging source and target in one
// hop, nil when there is none, or AmbiguousPathError when several qualify
// and no tie-break is configured.
func (g *Graph) directHop(source, target string) (*Hop, error) {
	var candidates []Hop
	for _, d := range g.Devices() {
		sp := liquidPortTo(d, source)
		tp := liquidPortTo(d, target)
		if sp >= 0 && tp >= 0 {
			candidates = append(candidates, Hop{Device: d, SourcePort: sp, TargetPort: tp})
		}
	}

	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
		return &candidates[0], nil
	}

	if g.tieBreak == TieBreakNone {
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.Device.Name
		}
		sort.Strings(names)
		return nil, &domain.AmbiguousPathError{Source: source, Target: target, Devices: names}
	}

	// Prefer the device already holding liquid matching the target
	// content label, then the lowest load-time ordinal.
	if tv := g.Vessel(target); tv != nil && tv.Content != "" {
		var matching []Hop
		for _, c := range candidates {
			if g.Holding(c.Device.Name) == tv.Content {
				matching = append(matching, c)
			}
		}
		if len(matching) > 0 {
			candidates = matching
		}
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Device.Ordinal < best.Device.Ordinal {
			best = c
		}
	}
	return &best, nil
}

// liquidPortTo returns the lowest liquid port of d reaching node,
// skipping ports on the gas manifold, or -1.
func liquidPortTo(d *domain.Device, node string) int {
	best := -1
	for port, tgt := range d.Ports {
		if tgt != node || d.GasPorts[port] {
			continue
		}
		if best < 0 || port < best {
			best = port
		}
	}
	return best
}
