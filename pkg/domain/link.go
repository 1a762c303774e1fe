package domain

// LinkType classifies the physical nature of a connection.
type LinkType string

const (
	// LinkVolumetric is a liquid path (tubing between a pump port and a vessel).
	LinkVolumetric LinkType = "volumetric"
	// LinkGas is an inert-gas path (blanketing or purge line).
	LinkGas LinkType = "gas"
	// LinkThermal is a heat-transfer coupling. It is not a flow path and is
	// never considered by the transfer router.
	LinkThermal LinkType = "thermal"
)

// Link is a directed, typed edge from a device port to another node.
// Each (device, port) pair has at most one outgoing link, so the graph is
// a forest of star topologies rooted at each multi-port device.
type Link struct {
	Type       LinkType `json:"type" yaml:"type"`
	Source     string   `json:"source" yaml:"source"`
	SourcePort int      `json:"source_port" yaml:"source_port"`
	Target     string   `json:"target" yaml:"target"`
}
