package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the operational haptic-link configuration
type Config struct {
	Version       string             `yaml:"version" json:"version"`
	ConfigID      string             `yaml:"config_id" json:"config_id"`
	LastUpdated   string             `yaml:"lastUpdated" json:"lastUpdated"`
	ClientName    string             `yaml:"client_name" json:"client_name"`
	DeviceServer  DeviceServerConfig `yaml:"device_server" json:"device_server"`
	Motion        MotionConfig       `yaml:"motion" json:"motion"`
	ActorMappings []ActorMapping     `yaml:"actor_mappings" json:"actor_mappings"`
	Defaults      DefaultsConfig     `yaml:"defaults" json:"defaults"`
}

// DeviceServerConfig holds the connection settings for the external
// device-control server
type DeviceServerConfig struct {
	URL                string `yaml:"url" json:"url"`
	ReconnectMinMs     int    `yaml:"reconnect_min_ms" json:"reconnect_min_ms"`
	ReconnectMaxMs     int    `yaml:"reconnect_max_ms" json:"reconnect_max_ms"`
	HandshakeTimeoutMs int    `yaml:"handshake_timeout_ms" json:"handshake_timeout_ms"`
}

// MotionConfig holds the global motion-to-intensity tuning parameters
type MotionConfig struct {
	SpeedCap             float64 `yaml:"speed_cap" json:"speed_cap"`
	NormalizationFactor  float64 `yaml:"normalization_factor" json:"normalization_factor"`
	MinCommandIntervalMs int     `yaml:"min_command_interval_ms" json:"min_command_interval_ms"`
}

// ActorMapping binds a motion source (an engine-side actor) to the devices
// that should react to it
type ActorMapping struct {
	ActorID              string  `yaml:"actor_id" json:"actor_id"`
	DeviceName           string  `yaml:"device_name,omitempty" json:"device_name,omitempty"`
	Capability           string  `yaml:"capability" json:"capability"`
	SpeedCap             float64 `yaml:"speed_cap,omitempty" json:"speed_cap,omitempty"`
	NormalizationFactor  float64 `yaml:"normalization_factor,omitempty" json:"normalization_factor,omitempty"`
	MinCommandIntervalMs int     `yaml:"min_command_interval_ms,omitempty" json:"min_command_interval_ms,omitempty"`
}

// DefaultsConfig holds default values for actor mappings
type DefaultsConfig struct {
	Capability string `yaml:"capability" json:"capability"`
}

// Fallback tuning used when the operational config leaves a field unset.
const (
	DefaultSpeedCap             = 99.0
	DefaultMinCommandIntervalMs = 150
	DefaultCapability           = "vibrate"
)

// LoadConfig loads the operational configuration from the specified file path
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if config.DeviceServer.URL == "" {
		return nil, fmt.Errorf("missing required field in config: device_server.url")
	}

	config.applyFallbacks()

	return &config, nil
}

// applyFallbacks fills unset tuning fields with their defaults
func (c *Config) applyFallbacks() {
	if c.Motion.SpeedCap <= 0 {
		c.Motion.SpeedCap = DefaultSpeedCap
	}
	if c.Motion.NormalizationFactor <= 0 {
		// Intensity reaches 1.0 exactly at the speed cap
		c.Motion.NormalizationFactor = c.Motion.SpeedCap
	}
	if c.Motion.MinCommandIntervalMs <= 0 {
		c.Motion.MinCommandIntervalMs = DefaultMinCommandIntervalMs
	}
	if c.Defaults.Capability == "" {
		c.Defaults.Capability = DefaultCapability
	}
}

// GetActorMapping returns the mapping for a specific actor id with defaults
// applied, or false if the actor is not configured
func (c *Config) GetActorMapping(actorID string) (ActorMapping, bool) {
	for _, mapping := range c.ActorMappings {
		if mapping.ActorID == actorID {
			return c.applyDefaults(mapping), true
		}
	}
	return ActorMapping{}, false
}

// ActorIDs returns the ids of all configured actors
func (c *Config) ActorIDs() []string {
	ids := make([]string, 0, len(c.ActorMappings))
	for _, mapping := range c.ActorMappings {
		ids = append(ids, mapping.ActorID)
	}
	return ids
}

// applyDefaults merges global tuning values into a mapping where fields are unset
func (c *Config) applyDefaults(mapping ActorMapping) ActorMapping {
	result := mapping

	if result.Capability == "" {
		result.Capability = c.Defaults.Capability
	}
	if result.SpeedCap <= 0 {
		result.SpeedCap = c.Motion.SpeedCap
	}
	if result.NormalizationFactor <= 0 {
		if c.Motion.NormalizationFactor > 0 {
			result.NormalizationFactor = c.Motion.NormalizationFactor
		} else {
			result.NormalizationFactor = result.SpeedCap
		}
	}
	if result.MinCommandIntervalMs <= 0 {
		result.MinCommandIntervalMs = c.Motion.MinCommandIntervalMs
	}

	return result
}
