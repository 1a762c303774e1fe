package domain

// DeviceKind identifies the actuator class of a device node.
type DeviceKind string

const (
	KindSyringePump     DeviceKind = "syringe_pump"
	KindPeristalticPump DeviceKind = "peristaltic_pump"
	KindThermostat      DeviceKind = "thermostat"
	KindRelay           DeviceKind = "relay"
	KindActuator        DeviceKind = "actuator"
)

// Device is a physical actuator node in the topology.
//
// Not every field applies to every kind: syringe pumps have ports and a
// syringe capacity, serial-reachable devices (relays, actuators,
// peristaltic pumps) have a bus and an address, thermostats have setpoints.
type Device struct {
	Name string     `json:"name"`
	Kind DeviceKind `json:"kind"`

	// Ordinal is assigned in load order and is the deterministic routing
	// tie-break when several devices offer the same direct path.
	Ordinal int `json:"ordinal"`

	// Bus and Address locate the device on a shared serial line.
	Bus     string `json:"bus,omitempty"`
	Address int    `json:"address,omitempty"`

	// Capacity is the syringe volume in mL for syringe pumps. A transfer
	// larger than Capacity is split into multiple draw/dispense cycles.
	Capacity float64 `json:"capacity,omitempty"`

	// Ports maps a port index to the node name its tubing reaches.
	// Populated from the volumetric and gas links at load time.
	Ports map[int]string `json:"ports,omitempty"`

	// GasPorts marks which ports sit on the shared gas manifold.
	GasPorts map[int]bool `json:"gas_ports,omitempty"`

	// Subsystem is the keyword a relay answers to (e.g. "GAS" for the
	// GAS_ON/GAS_OFF command pair).
	Subsystem string `json:"subsystem,omitempty"`

	// MinPosition and MaxPosition bound the operating range of a linear
	// actuator (raw PWM units on the reference rig, 1000..2000).
	MinPosition int `json:"min_position,omitempty"`
	MaxPosition int `json:"max_position,omitempty"`
}

// PortTo returns the port index whose link reaches the named node, or
// -1 when no port of this device is connected to it.
func (d *Device) PortTo(node string) int {
	for port, target := range d.Ports {
		if target == node {
			return port
		}
	}
	return -1
}

// HasGasManifold reports whether any port of the device sits on a shared
// gas line. Transfers through such a device need pressure equalization.
func (d *Device) HasGasManifold() bool {
	for _, gas := range d.GasPorts {
		if gas {
			return true
		}
	}
	return false
}
