package syrinx

import (
	"context"
	"fmt"
	"io"
	"time"

	"log/slog"

	"github.com/openfluidics/syrinx/internal/adapters/memory"
	"github.com/openfluidics/syrinx/internal/config"
	"github.com/openfluidics/syrinx/pkg/device"
	"github.com/openfluidics/syrinx/pkg/domain"
	"github.com/openfluidics/syrinx/pkg/ports"
	"github.com/openfluidics/syrinx/pkg/router"
	"github.com/openfluidics/syrinx/pkg/serial"
	"github.com/openfluidics/syrinx/pkg/session"
	"github.com/openfluidics/syrinx/pkg/topology"
	"github.com/openfluidics/syrinx/pkg/workflow"
)

// Engine is the high-level entry point for the Syrinx library.
// It wires the topology graph, transfer router, serial channel, device
// facade and workflow phases behind one simplified API.
type Engine struct {
	graph    *topology.Graph
	channel  *serial.Channel
	facade   *device.Facade
	router   *router.Router
	executor *router.Executor
	flow     *workflow.Workflow
	runs     *session.Manager

	store      ports.RunStore
	logger     *slog.Logger
	serialOpts []serial.Option
	routerOpts []router.Option
	transports map[string]serial.LineTransport
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRunStore injects a run-record store, replacing the default
// in-memory one.
func WithRunStore(store ports.RunStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithTransport attaches a line transport under a bus ID. Call once per
// physical bus; the simulated rig attaches the same way as real ports.
func WithTransport(busID string, t serial.LineTransport) Option {
	return func(e *Engine) {
		e.transports[busID] = t
	}
}

// WithSerialOptions forwards tuning options to the serial channel.
func WithSerialOptions(opts ...serial.Option) Option {
	return func(e *Engine) {
		e.serialOpts = append(e.serialOpts, opts...)
	}
}

// WithRouterOptions forwards tuning options to the transfer router.
func WithRouterOptions(opts ...router.Option) Option {
	return func(e *Engine) {
		e.routerOpts = append(e.routerOpts, opts...)
	}
}

// New initializes an Engine from a topology description file.
// Use NewFromGraph when the graph is built programmatically.
func New(topologyPath string, opts ...Option) (*Engine, error) {
	graph, err := config.LoadTopology(topologyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load topology: %w", err)
	}
	return NewFromGraph(graph, opts...)
}

// NewFromGraph initializes an Engine over an already built graph.
func NewFromGraph(graph *topology.Graph, opts ...Option) (*Engine, error) {
	if graph == nil {
		return nil, fmt.Errorf("graph is required")
	}
	eng := &Engine{
		graph:      graph,
		transports: make(map[string]serial.LineTransport),
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if eng.store == nil {
		eng.store = memory.New()
	}

	serialOpts := append([]serial.Option{serial.WithLogger(eng.logger)}, eng.serialOpts...)
	eng.channel = serial.NewChannel(serialOpts...)
	for busID, t := range eng.transports {
		eng.channel.Attach(busID, t)
	}

	eng.facade = device.New(eng.channel, graph, device.WithLogger(eng.logger))

	routerOpts := append([]router.Option{router.WithLogger(eng.logger)}, eng.routerOpts...)
	eng.router = router.New(graph, routerOpts...)
	eng.executor = router.NewExecutor(graph, eng.facade, router.WithExecutorLogger(eng.logger))

	eng.runs = session.NewManager(eng.store, session.WithLogger(eng.logger))
	eng.flow = workflow.New(eng.facade, eng, eng.runs, workflow.WithLogger(eng.logger))

	return eng, nil
}

// AttachBus registers a transport after construction, replacing any
// transport already attached under the bus ID.
func (e *Engine) AttachBus(busID string, t serial.LineTransport) {
	e.channel.Attach(busID, t)
}

// Transfer plans and executes one vessel-to-vessel transfer. Validation
// and routing failures reject the request before any actuation; a
// mid-plan failure returns the partial outcome together with a
// *domain.PartialTransferError.
func (e *Engine) Transfer(ctx context.Context, source, target string, volume float64) (domain.TransferOutcome, error) {
	plan, err := e.router.PlanTransfer(source, target, volume)
	if err != nil {
		return domain.TransferOutcome{
			Status: domain.TransferRejected, Source: source, Target: target, Requested: volume,
		}, err
	}
	return e.executor.ExecutePlan(ctx, plan)
}

// PlanTransfer computes a plan without actuating anything.
func (e *Engine) PlanTransfer(source, target string, volume float64, opts ...router.PlanOption) (*domain.TransferPlan, error) {
	return e.router.PlanTransfer(source, target, volume, opts...)
}

// Devices returns the device actuation facade.
func (e *Engine) Devices() *device.Facade {
	return e.facade
}

// Workflow returns the protocol phase runner.
func (e *Engine) Workflow() *workflow.Workflow {
	return e.flow
}

// Runs returns the run-record manager.
func (e *Engine) Runs() *session.Manager {
	return e.runs
}

// Graph returns the underlying topology graph.
func (e *Engine) Graph() *topology.Graph {
	return e.graph
}

// Vessels returns a snapshot of every vessel ledger.
func (e *Engine) Vessels() []domain.VesselSnapshot {
	return e.graph.Vessels()
}

// Status queries one device, falling back to the host-side cache when
// the device does not answer.
func (e *Engine) Status(ctx context.Context, name string) (map[string]string, error) {
	return e.facade.Status(ctx, name)
}

// Close releases every attached transport.
func (e *Engine) Close() error {
	return e.channel.Close()
}

// SimulatedEngine builds an engine whose buses all point at one
// simulated rig, for tests and dry runs. The rig speaks the reference
// grammar with a position range of 1000..2000.
func SimulatedEngine(graph *topology.Graph, subsystems []string, opts ...Option) (*Engine, *serial.SimulatedRig, error) {
	rig := serial.NewSimulatedRig(subsystems, 1000, 2000)

	buses := make(map[string]bool)
	for _, d := range graph.Devices() {
		if d.Bus != "" {
			buses[d.Bus] = true
		}
	}
	for busID := range buses {
		opts = append(opts, WithTransport(busID, rig))
	}
	opts = append(opts, WithSerialOptions(
		serial.WithTimeout(time.Second),
		serial.WithRetries(1),
		serial.WithBackoff(10*time.Millisecond),
	))

	eng, err := NewFromGraph(graph, opts...)
	if err != nil {
		return nil, nil, err
	}
	return eng, rig, nil
}
