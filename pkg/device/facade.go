// Package device maps logical operations (draw, dispense, heat, stir,
// switch, position) onto serial command exchanges. It owns the per-device
// command grammar and normalizes failures into the shared error taxonomy.
//
// Retry and backoff live in the serial channel, not here: the facade
// never re-issues a command on its own, so volume accounting stays
// exactly-once at plan-execution time.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openfluidics/syrinx/internal/logging"
	"github.com/openfluidics/syrinx/pkg/domain"
	"github.com/openfluidics/syrinx/pkg/serial"
	"github.com/openfluidics/syrinx/pkg/topology"
)

// Facade is the single owner of every device in its graph; no device is
// shared between two facades.
type Facade struct {
	ch     *serial.Channel
	graph  *topology.Graph
	logger *slog.Logger
}

// Option configures the facade.
type Option func(*Facade)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Facade) { f.logger = logger }
}

// New creates a facade over the given channel and topology.
func New(ch *serial.Channel, graph *topology.Graph, opts ...Option) *Facade {
	f := &Facade{
		ch:     ch,
		graph:  graph,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Facade) device(name string, kinds ...domain.DeviceKind) (*domain.Device, error) {
	d := f.graph.Device(name)
	if d == nil {
		return nil, &domain.ValidationError{Reason: "unknown device " + name}
	}
	for _, k := range kinds {
		if d.Kind == k {
			return d, nil
		}
	}
	return nil, &domain.ValidationError{Reason: fmt.Sprintf("device %s is a %s, not %v", name, d.Kind, kinds)}
}

// Draw selects the pump's rotary valve port and pulls volume at rate.
func (f *Facade) Draw(ctx context.Context, name string, port int, volume, rate float64) error {
	d, err := f.device(name, domain.KindSyringePump)
	if err != nil {
		return err
	}
	if volume <= 0 || rate <= 0 {
		return &domain.ValidationError{Reason: fmt.Sprintf("draw on %s: volume and rate must be positive", name)}
	}
	if volume > d.Capacity {
		return &domain.ValidationError{Reason: fmt.Sprintf("draw on %s: %.3g mL exceeds syringe capacity %.3g", name, volume, d.Capacity)}
	}
	if _, err := f.ch.Send(ctx, d.Bus, d.Address, fmt.Sprintf("VALVE %d", port)); err != nil {
		return err
	}
	f.logger.Debug("draw", "device", name, "port", port, "volume", volume, "rate", rate)
	_, err = f.ch.Send(ctx, d.Bus, d.Address, fmt.Sprintf("DRAW %.4g %.4g", volume, rate))
	return err
}

// Dispense selects the port and pushes volume at rate.
func (f *Facade) Dispense(ctx context.Context, name string, port int, volume, rate float64) error {
	d, err := f.device(name, domain.KindSyringePump)
	if err != nil {
		return err
	}
	if volume <= 0 || rate <= 0 {
		return &domain.ValidationError{Reason: fmt.Sprintf("dispense on %s: volume and rate must be positive", name)}
	}
	if _, err := f.ch.Send(ctx, d.Bus, d.Address, fmt.Sprintf("VALVE %d", port)); err != nil {
		return err
	}
	f.logger.Debug("dispense", "device", name, "port", port, "volume", volume, "rate", rate)
	_, err = f.ch.Send(ctx, d.Bus, d.Address, fmt.Sprintf("DISP %.4g %.4g", volume, rate))
	return err
}

// RunContinuous drives a peristaltic pump at rate for the duration. The
// command is fire-and-forget on the device side; the call returns once
// the device acknowledges the run.
func (f *Facade) RunContinuous(ctx context.Context, name string, rate float64, duration time.Duration) error {
	d, err := f.device(name, domain.KindPeristalticPump)
	if err != nil {
		return err
	}
	if rate == 0 {
		return &domain.ValidationError{Reason: fmt.Sprintf("run on %s: rate must be non-zero", name)}
	}
	_, err = f.ch.Send(ctx, d.Bus, d.Address, fmt.Sprintf("RUN %.4g %d", rate, int(duration.Seconds())))
	return err
}

// SetTemperature sets a thermostat target in degrees Celsius.
func (f *Facade) SetTemperature(ctx context.Context, name string, target float64) error {
	d, err := f.device(name, domain.KindThermostat)
	if err != nil {
		return err
	}
	f.logger.Debug("set temperature", "device", name, "target", target)
	_, err = f.ch.Send(ctx, d.Bus, d.Address, fmt.Sprintf("TEMP %.4g", target))
	return err
}

// SetStir sets a thermostat stirring speed in rpm.
func (f *Facade) SetStir(ctx context.Context, name string, rpm int) error {
	d, err := f.device(name, domain.KindThermostat)
	if err != nil {
		return err
	}
	if rpm < 0 {
		return &domain.ValidationError{Reason: fmt.Sprintf("stir on %s: negative rpm", name)}
	}
	f.logger.Debug("set stir", "device", name, "rpm", rpm)
	_, err = f.ch.Send(ctx, d.Bus, d.Address, fmt.Sprintf("RPM %d", rpm))
	return err
}

// SetBinaryOutput switches a relay subsystem on or off.
func (f *Facade) SetBinaryOutput(ctx context.Context, name string, on bool) error {
	d, err := f.device(name, domain.KindRelay)
	if err != nil {
		return err
	}
	suffix := "OFF"
	if on {
		suffix = "ON"
	}
	f.logger.Debug("set relay", "device", name, "state", suffix)
	_, err = f.ch.Send(ctx, d.Bus, d.Address, d.Subsystem+"_"+suffix)
	return err
}

// SetPosition moves a linear actuator to an absolute position inside its
// operating range.
func (f *Facade) SetPosition(ctx context.Context, name string, value int) error {
	d, err := f.device(name, domain.KindActuator)
	if err != nil {
		return err
	}
	if value < d.MinPosition || value > d.MaxPosition {
		return &domain.ValidationError{Reason: fmt.Sprintf("position %d outside [%d, %d] for %s", value, d.MinPosition, d.MaxPosition, name)}
	}
	f.logger.Debug("set position", "device", name, "value", value)
	_, err = f.ch.Send(ctx, d.Bus, d.Address, fmt.Sprintf("%d", value))
	return err
}

// Status queries the device; when it does not answer, the host-side cache
// of acknowledged commands is returned instead so an unreadable device
// still has an answerable state.
func (f *Facade) Status(ctx context.Context, name string) (map[string]string, error) {
	d := f.graph.Device(name)
	if d == nil {
		return nil, &domain.ValidationError{Reason: "unknown device " + name}
	}
	resp, err := f.ch.Send(ctx, d.Bus, d.Address, "STATUS")
	if err == nil {
		return map[string]string{"STATUS": resp}, nil
	}
	var unresponsive *domain.DeviceUnresponsiveError
	if errors.As(err, &unresponsive) {
		if cached, ok := f.ch.CachedStatus(d.Bus, d.Address); ok {
			f.logger.Debug("status from cache", "device", name)
			return cached, nil
		}
	}
	return nil, err
}
