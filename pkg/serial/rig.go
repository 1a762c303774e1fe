package serial

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SimulatedRig is an in-memory LineTransport speaking the platform's
// device grammar, so the whole stack runs without hardware:
//
//   - a bare integer inside the operating range moves the actuator
//     (1000 fully retracted, 2000 fully extended on the reference rig)
//   - <SUBSYSTEM>_ON / <SUBSYSTEM>_OFF switches a relay
//   - ALL_ON / ALL_OFF switches every relay
//   - STATUS reports every output
//   - DRAW/DISP/VALVE/TEMP/RPM/RUN with numeric arguments are the pump
//     and hotplate command set
//
// Anything else is answered "Invalid command: <token>", never silence.
type SimulatedRig struct {
	mu sync.Mutex

	relays map[string]bool
	minPos int
	maxPos int
	pos    int

	latency time.Duration

	// received is the transcript of every frame in arrival order.
	received []string
}

// RigOption configures the simulated rig.
type RigOption func(*SimulatedRig)

// WithLatency adds an artificial round-trip delay per exchange.
func WithLatency(d time.Duration) RigOption {
	return func(r *SimulatedRig) { r.latency = d }
}

// NewSimulatedRig creates a rig with the given relay subsystems and
// actuator operating range.
func NewSimulatedRig(subsystems []string, minPos, maxPos int, opts ...RigOption) *SimulatedRig {
	r := &SimulatedRig{
		relays: make(map[string]bool, len(subsystems)),
		minPos: minPos,
		maxPos: maxPos,
		pos:    minPos,
	}
	for _, s := range subsystems {
		r.relays[strings.ToUpper(s)] = false
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Exchange handles one frame and produces its acknowledgement line.
func (r *SimulatedRig) Exchange(ctx context.Context, line string) (string, error) {
	if r.latency > 0 {
		select {
		case <-time.After(r.latency):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	raw := strings.TrimSpace(line)
	r.received = append(r.received, raw)

	// Strip the optional leading address field.
	token := raw
	if fields := strings.Fields(raw); len(fields) > 1 {
		if _, err := strconv.Atoi(fields[0]); err == nil {
			token = strings.Join(fields[1:], " ")
		}
	}

	return r.handle(token), nil
}

func (r *SimulatedRig) handle(token string) string {
	upper := strings.ToUpper(strings.TrimSpace(token))
	if upper == "" {
		return invalid(token)
	}

	if n, err := strconv.Atoi(upper); err == nil {
		if n < r.minPos || n > r.maxPos {
			return invalid(token)
		}
		r.pos = n
		return fmt.Sprintf("OK %d", n)
	}

	if upper == "STATUS" {
		return "OK " + r.statusLine()
	}

	if upper == "ALL_ON" || upper == "ALL_OFF" {
		on := strings.HasSuffix(upper, "_ON")
		for k := range r.relays {
			r.relays[k] = on
		}
		return "OK " + upper
	}

	if idx := strings.LastIndex(upper, "_"); idx > 0 {
		name, suffix := upper[:idx], upper[idx+1:]
		if suffix == "ON" || suffix == "OFF" {
			if _, known := r.relays[name]; known {
				r.relays[name] = suffix == "ON"
				return "OK " + upper
			}
			return invalid(token)
		}
	}

	if resp, ok := r.handlePumpCommand(upper); ok {
		return resp
	}

	return invalid(token)
}

// handlePumpCommand accepts the pump/hotplate verbs with numeric
// arguments. The rig acks them without modelling fluid dynamics; the
// vessel ledger lives host-side.
func (r *SimulatedRig) handlePumpCommand(upper string) (string, bool) {
	fields := strings.Fields(upper)
	if len(fields) == 0 {
		return "", false
	}
	verb := fields[0]
	argc := map[string]int{
		"DRAW":  2, // volume rate
		"DISP":  2, // volume rate
		"VALVE": 1, // port
		"TEMP":  1, // celsius
		"RPM":   1, // stir speed
		"RUN":   2, // rate seconds
	}
	want, known := argc[verb]
	if !known {
		return "", false
	}
	if len(fields)-1 != want {
		return invalid(strings.Join(fields, " ")), true
	}
	for _, arg := range fields[1:] {
		if _, err := strconv.ParseFloat(arg, 64); err != nil {
			return invalid(strings.Join(fields, " ")), true
		}
	}
	return "OK " + strings.Join(fields, " "), true
}

func (r *SimulatedRig) statusLine() string {
	names := make([]string, 0, len(r.relays))
	for name := range r.relays {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names)+1)
	for _, name := range names {
		state := "OFF"
		if r.relays[name] {
			state = "ON"
		}
		parts = append(parts, name+"="+state)
	}
	parts = append(parts, fmt.Sprintf("POSITION=%d", r.pos))
	return strings.Join(parts, ",")
}

// Received returns a copy of the frame transcript in arrival order.
func (r *SimulatedRig) Received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.received))
	copy(out, r.received)
	return out
}

// Relay reports the simulated state of one subsystem.
func (r *SimulatedRig) Relay(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.relays[strings.ToUpper(name)]
}

// Position reports the simulated actuator position.
func (r *SimulatedRig) Position() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos
}

// Close is a no-op for the in-memory rig.
func (r *SimulatedRig) Close() error { return nil }

func invalid(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return InvalidCommandPrefix
	}
	return InvalidCommandPrefix + " " + token
}
