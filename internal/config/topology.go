// Package config loads and validates the declarative documents that
// describe a rig: the topology (nodes and typed links) and the service
// settings for the control daemon.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/openfluidics/syrinx/pkg/domain"
	"github.com/openfluidics/syrinx/pkg/topology"
)

var validate = validator.New()

// TopologyDoc is the on-disk shape of a rig description. Each node
// carries a type tag and type-specific settings; links are typed edges
// from device ports to nodes.
type TopologyDoc struct {
	Nodes   []NodeDoc  `yaml:"nodes"`
	Links   []LinkDoc  `yaml:"links"`
	Routing RoutingDoc `yaml:"routing"`
}

// NodeDoc is one node entry before type-specific decoding.
type NodeDoc struct {
	Name     string         `yaml:"name"`
	Type     string         `yaml:"type"`
	Settings map[string]any `yaml:"settings"`
}

// LinkDoc is one typed edge entry.
type LinkDoc struct {
	Type       string `yaml:"type" validate:"required,oneof=volumetric gas thermal"`
	Source     string `yaml:"source" validate:"required"`
	SourcePort int    `yaml:"source_port" validate:"gte=0"`
	Target     string `yaml:"target" validate:"required"`
}

// RoutingDoc configures path resolution.
type RoutingDoc struct {
	Intermediates []string `yaml:"intermediates"`
	TieBreak      string   `yaml:"tie_break" validate:"omitempty,oneof=none content_ordinal"`
}

type vesselSettings struct {
	MaxVolume     float64 `mapstructure:"max_volume" validate:"gt=0"`
	CurrentVolume float64 `mapstructure:"current_volume" validate:"gte=0"`
	Addable       bool    `mapstructure:"addable"`
	Removable     bool    `mapstructure:"removable"`
	Content       string  `mapstructure:"content"`
}

type deviceSettings struct {
	Bus         string  `mapstructure:"bus" validate:"required"`
	Address     int     `mapstructure:"address" validate:"gte=0"`
	Capacity    float64 `mapstructure:"capacity" validate:"gte=0"`
	Subsystem   string  `mapstructure:"subsystem"`
	MinPosition int     `mapstructure:"min_position"`
	MaxPosition int     `mapstructure:"max_position"`
}

var deviceKinds = map[string]domain.DeviceKind{
	"syringe_pump":     domain.KindSyringePump,
	"peristaltic_pump": domain.KindPeristalticPump,
	"thermostat":       domain.KindThermostat,
	"relay":            domain.KindRelay,
	"actuator":         domain.KindActuator,
}

// LoadTopology reads a rig description from a YAML file and builds the
// validated topology graph.
func LoadTopology(path string) (*topology.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology: %w", err)
	}
	return ParseTopology(data)
}

// ParseTopology builds the graph from raw YAML.
func ParseTopology(data []byte) (*topology.Graph, error) {
	var doc TopologyDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse topology: %w", err)
	}
	return BuildGraph(&doc)
}

// BuildGraph validates a decoded document and assembles the graph.
// Node order in the document fixes device ordinals, which routing
// tie-breaks rely on, so the document is the single source of priority.
func BuildGraph(doc *TopologyDoc) (*topology.Graph, error) {
	var (
		vessels []*domain.Vessel
		devices []*domain.Device
	)

	for _, node := range doc.Nodes {
		if node.Name == "" {
			return nil, fmt.Errorf("node with empty name")
		}
		switch node.Type {
		case "vessel":
			var settings vesselSettings
			if err := decodeSettings(node, &settings); err != nil {
				return nil, err
			}
			v, err := domain.NewVessel(node.Name, settings.MaxVolume, settings.CurrentVolume,
				settings.Addable, settings.Removable, settings.Content)
			if err != nil {
				return nil, err
			}
			vessels = append(vessels, v)
		default:
			kind, ok := deviceKinds[node.Type]
			if !ok {
				return nil, fmt.Errorf("node %s: unknown type %q", node.Name, node.Type)
			}
			var settings deviceSettings
			if err := decodeSettings(node, &settings); err != nil {
				return nil, err
			}
			devices = append(devices, &domain.Device{
				Name:        node.Name,
				Kind:        kind,
				Bus:         settings.Bus,
				Address:     settings.Address,
				Capacity:    settings.Capacity,
				Subsystem:   settings.Subsystem,
				MinPosition: settings.MinPosition,
				MaxPosition: settings.MaxPosition,
			})
		}
	}

	links := make([]domain.Link, 0, len(doc.Links))
	for i, l := range doc.Links {
		if err := validate.Struct(l); err != nil {
			return nil, fmt.Errorf("link %d: %w", i, err)
		}
		links = append(links, domain.Link{
			Type:       domain.LinkType(l.Type),
			Source:     l.Source,
			SourcePort: l.SourcePort,
			Target:     l.Target,
		})
	}

	if err := validate.Struct(doc.Routing); err != nil {
		return nil, fmt.Errorf("routing: %w", err)
	}
	var opts []topology.Option
	if len(doc.Routing.Intermediates) > 0 {
		opts = append(opts, topology.WithIntermediates(doc.Routing.Intermediates...))
	}
	if doc.Routing.TieBreak == "content_ordinal" {
		opts = append(opts, topology.WithTieBreak(topology.TieBreakContentOrdinal))
	}

	return topology.New(vessels, devices, links, opts...)
}

func decodeSettings(node NodeDoc, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(node.Settings); err != nil {
		return fmt.Errorf("node %s: %w", node.Name, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("node %s: %w", node.Name, err)
	}
	return nil
}
