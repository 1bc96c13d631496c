package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BootstrapConfig holds the initial configuration loaded from controller_config.yaml
type BootstrapConfig struct {
	Logging  LoggingConfig         `yaml:"logging"`
	Server   BootstrapServerConfig `yaml:"server"`
	ZeroMQ   ZeroMQBootstrap       `yaml:"zeromq"`
	Data     DataConfig            `yaml:"data"`
	Pipeline PipelineConfig        `yaml:"pipeline"`
}

// LoggingConfig holds logging settings from bootstrap
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogPath string `yaml:"log_path,omitempty"`
}

// BootstrapServerConfig holds bootstrap HTTP server settings
type BootstrapServerConfig struct {
	HTTPPort int `yaml:"http_port"`
}

// ZeroMQBootstrap holds ZeroMQ settings from bootstrap. The subscribe
// address is optional; when empty the ZeroMQ motion listener is not started.
type ZeroMQBootstrap struct {
	MotionSubscribeAddress string `yaml:"motion_subscribe_address,omitempty"`
}

// PipelineConfig holds frame pipeline settings from bootstrap
type PipelineConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// DataConfig holds data directory settings from bootstrap
type DataConfig struct {
	Directory            string `yaml:"directory"`
	HapticConfigFilename string `yaml:"haptic_config_file"`
}

// LoadBootstrapConfig loads the bootstrap configuration from controller_config.yaml
func LoadBootstrapConfig(configDir string) (*BootstrapConfig, error) {
	bootstrapConfigPath := filepath.Join(configDir, "controller_config.yaml")

	data, err := os.ReadFile(bootstrapConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error reading bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	var bootstrapCfg BootstrapConfig
	if err := yaml.Unmarshal(data, &bootstrapCfg); err != nil {
		return nil, fmt.Errorf("error parsing bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	if bootstrapCfg.Data.Directory == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: data.directory")
	}
	if bootstrapCfg.Data.HapticConfigFilename == "" {
		return nil, fmt.Errorf("missing required field in bootstrap config: data.haptic_config_file")
	}
	if bootstrapCfg.Server.HTTPPort == 0 {
		bootstrapCfg.Server.HTTPPort = 8080
	}
	if bootstrapCfg.Pipeline.QueueSize <= 0 {
		bootstrapCfg.Pipeline.QueueSize = 64
	}

	return &bootstrapCfg, nil
}
