package serial

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/openfluidics/syrinx/internal/logging"
	"github.com/openfluidics/syrinx/internal/metrics"
	"github.com/openfluidics/syrinx/pkg/domain"
)

// InvalidCommandPrefix starts every rejection acknowledgement. A device
// answering with it is present but did not understand the frame, which is
// a different failure from not answering at all.
const InvalidCommandPrefix = "Invalid command:"

// ErrInvalidCommand reports that the device explicitly rejected the
// command. It is never retried: re-sending a malformed token cannot help.
type ErrInvalidCommand struct {
	Bus      string
	Address  int
	Command  string
	Response string
}

func (e *ErrInvalidCommand) Error() string {
	return fmt.Sprintf("bus %s addr %d rejected %q: %s", e.Bus, e.Address, e.Command, e.Response)
}

// bus is one physical line plus its in-flight mutex. Only one command may
// be on the wire per bus at a time, across all addresses: interleaving
// partial frames would desynchronize address framing for every device.
type bus struct {
	id        string
	transport LineTransport
	mu        sync.Mutex
}

// Channel is the framed request/response protocol over shared serial
// lines. Callers on the same bus serialize through the bus lock; callers
// on different buses proceed independently.
//
// The channel tracks the last commanded state per (bus, address) so a
// STATUS-style query can be answered from cache when the device offers no
// readback. The cache is updated only after a positive acknowledgement.
type Channel struct {
	mu    sync.RWMutex
	buses map[string]*bus

	timeout time.Duration
	retries int
	backoff time.Duration

	logger *slog.Logger

	stateMu sync.RWMutex
	state   map[string]map[string]string
}

// Option configures the channel.
type Option func(*Channel)

// WithTimeout bounds each command round-trip.
func WithTimeout(d time.Duration) Option {
	return func(c *Channel) { c.timeout = d }
}

// WithRetries sets the retry budget after the first attempt.
func WithRetries(n int) Option {
	return func(c *Channel) { c.retries = n }
}

// WithBackoff sets the linear backoff unit: attempt n waits n*backoff.
func WithBackoff(d time.Duration) Option {
	return func(c *Channel) { c.backoff = d }
}

// WithLogger sets a structured logger for the channel.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) { c.logger = logger }
}

// NewChannel creates a channel with no buses attached.
func NewChannel(opts ...Option) *Channel {
	c := &Channel{
		buses:   make(map[string]*bus),
		timeout: 2 * time.Second,
		retries: 3,
		backoff: 500 * time.Millisecond,
		logger:  logging.NewNop(),
		state:   make(map[string]map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach registers a transport under a bus ID. Attaching the same ID
// twice replaces the transport; in-flight commands on the old transport
// finish first.
func (c *Channel) Attach(busID string, t LineTransport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buses[busID] = &bus{id: busID, transport: t}
}

// Close closes every attached transport.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, b := range c.buses {
		if err := b.transport.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Send transmits one command to the addressed device and returns its
// acknowledgement line. It blocks, bounded by the configured timeout per
// attempt, retrying with linear backoff on timeouts and malformed
// acknowledgements. An explicit invalid-command acknowledgement is
// returned immediately without retrying.
func (c *Channel) Send(ctx context.Context, busID string, address int, command string) (string, error) {
	c.mu.RLock()
	b, ok := c.buses[busID]
	c.mu.RUnlock()
	if !ok {
		return "", &domain.ValidationError{Reason: "unknown bus " + busID}
	}

	line := frame(address, command)

	var lastErr error
	attempts := c.retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			metrics.BusRetries.WithLabelValues(busID).Inc()
			select {
			case <-time.After(time.Duration(attempt-1) * c.backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err := c.exchange(ctx, b, line)
		if err != nil {
			lastErr = err
			c.logger.Warn("serial command failed",
				"bus", busID, "address", address, "command", command,
				"attempt", attempt, "err", err)
			continue
		}
		if strings.HasPrefix(resp, InvalidCommandPrefix) {
			metrics.BusCommands.WithLabelValues(busID, "invalid").Inc()
			return resp, &ErrInvalidCommand{Bus: busID, Address: address, Command: command, Response: resp}
		}
		if !strings.HasPrefix(resp, "OK") {
			// Garbled acknowledgement: treat like a timeout and retry.
			lastErr = fmt.Errorf("malformed acknowledgement %q", resp)
			c.logger.Warn("malformed acknowledgement",
				"bus", busID, "address", address, "response", resp, "attempt", attempt)
			continue
		}

		metrics.BusCommands.WithLabelValues(busID, "ok").Inc()
		c.recordState(busID, address, command)
		return resp, nil
	}

	metrics.BusCommands.WithLabelValues(busID, "unresponsive").Inc()
	return "", &domain.DeviceUnresponsiveError{
		Bus:      busID,
		Address:  address,
		Command:  command,
		Attempts: attempts,
		Last:     lastErr,
	}
}

// exchange performs one attempt under the bus lock with a bounded
// deadline. The lock spans the full round-trip so frames never interleave.
func (c *Channel) exchange(ctx context.Context, b *bus, line string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := b.transport.Exchange(ctx, line)
	metrics.CommandDuration.WithLabelValues(b.id).Observe(time.Since(start).Seconds())
	return strings.TrimSpace(resp), err
}

// CachedStatus returns the host-side record of the last acknowledged
// commands for the addressed device. The second return is false when
// nothing has been commanded yet.
func (c *Channel) CachedStatus(busID string, address int) (map[string]string, bool) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	states, ok := c.state[stateKey(busID, address)]
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(states))
	for k, v := range states {
		out[k] = v
	}
	return out, true
}

// recordState mirrors an acknowledged state-changing command into the
// host-side cache. Queries (STATUS) change nothing.
func (c *Channel) recordState(busID string, address int, command string) {
	key, value, ok := parseStateful(command)
	if !ok {
		return
	}
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	sk := stateKey(busID, address)
	if c.state[sk] == nil {
		c.state[sk] = make(map[string]string)
	}
	c.state[sk][key] = value
}

func stateKey(busID string, address int) string {
	return fmt.Sprintf("%s/%d", busID, address)
}

// parseStateful extracts the cacheable (key, value) from a command:
// "GAS_ON" -> ("GAS", "ON"), a bare integer -> ("POSITION", token).
func parseStateful(command string) (string, string, bool) {
	token := strings.TrimSpace(strings.ToUpper(command))
	if token == "" || token == "STATUS" {
		return "", "", false
	}
	if isInteger(token) {
		return "POSITION", token, true
	}
	if idx := strings.LastIndex(token, "_"); idx > 0 {
		suffix := token[idx+1:]
		if suffix == "ON" || suffix == "OFF" {
			return token[:idx], suffix, true
		}
	}
	return "", "", false
}

func isInteger(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '-' && i == 0 && len(s) > 1 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// frame prepends the address field for buses carrying multiple logical
// devices. Address 0 is the bare, single-device form used by the
// reference rig.
func frame(address int, command string) string {
	if address == 0 {
		return command
	}
	return fmt.Sprintf("%d %s", address, command)
}
