package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Service holds the control daemon settings.
type Service struct {
	Listen   string       `yaml:"listen" validate:"required"`
	LogLevel string       `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Topology string       `yaml:"topology" validate:"required"`
	Serial   SerialConfig `yaml:"serial"`
	Store    StoreConfig  `yaml:"store"`
	MQTT     MQTTConfig   `yaml:"mqtt"`
}

// SerialConfig tunes the command channel retry policy.
type SerialConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries" validate:"gte=0"`
	Backoff time.Duration `yaml:"backoff"`
	// Simulate replaces physical buses with the simulated rig.
	Simulate bool `yaml:"simulate"`
}

// StoreConfig selects the run-record backend.
type StoreConfig struct {
	Backend  string `yaml:"backend" validate:"omitempty,oneof=memory redis"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

// MQTTConfig points at the analytical measurement broker.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// DefaultService returns the settings used when a field is absent.
func DefaultService() Service {
	return Service{
		Listen:   ":8089",
		LogLevel: "info",
		Serial: SerialConfig{
			Timeout: 2 * time.Second,
			Retries: 3,
			Backoff: 500 * time.Millisecond,
		},
		Store: StoreConfig{Backend: "memory"},
	}
}

// LoadService reads daemon settings from a YAML file, applying defaults
// for absent fields.
func LoadService(path string) (Service, error) {
	cfg := DefaultService()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
