// Package metrics registers the Prometheus instruments for the control
// core. The serve command exposes them on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// BusCommands counts serial commands by bus and result
	// (ok, invalid, unresponsive).
	BusCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syrinx_bus_commands_total",
			Help: "Serial commands sent, by bus and result.",
		},
		[]string{"bus", "result"},
	)

	// BusRetries counts retry attempts at the protocol layer.
	BusRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syrinx_bus_retries_total",
			Help: "Serial command retries, by bus.",
		},
		[]string{"bus"},
	)

	// CommandDuration observes round-trip time per bus.
	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syrinx_bus_command_duration_seconds",
			Help:    "Round-trip time of serial commands.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"bus"},
	)

	// Transfers counts executed transfer plans by terminal status.
	Transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syrinx_transfers_total",
			Help: "Executed transfer plans, by status.",
		},
		[]string{"status"},
	)

	// VolumeMoved accumulates liquid volume delivered to targets, in mL.
	VolumeMoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "syrinx_volume_moved_ml_total",
			Help: "Total liquid volume delivered by executed plans.",
		},
	)

	// ControllerIterations counts closed-loop iterations by phase.
	ControllerIterations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syrinx_controller_iterations_total",
			Help: "Closed-loop controller iterations, by phase.",
		},
		[]string{"phase"},
	)
)

func init() {
	prometheus.MustRegister(
		BusCommands,
		BusRetries,
		CommandDuration,
		Transfers,
		VolumeMoved,
		ControllerIterations,
	)
}
