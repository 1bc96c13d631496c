package services

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/haptic-link/controller/pkg/config"
	customlog "github.com/haptic-link/controller/pkg/log"
)

// ConfigListener is notified after the operational configuration changes.
// The bridge service registers itself here to rebuild actor pipelines.
type ConfigListener func(cfg *config.Config)

// HapticConfigService manages the operational haptic-link configuration.
type HapticConfigService interface {
	LoadConfig() error
	GetCurrentConfig() *config.Config
	GetCurrentConfigYAML() ([]byte, error)
	UpdateConfig(newConfigYAML []byte) error
	PersistConfig(yamlData []byte) error
	SetListener(l ConfigListener)
}

// hapticConfigService implements the HapticConfigService interface.
type hapticConfigService struct {
	operationalConfigPath string
	logger                customlog.Logger
	listener              ConfigListener
	currentConfig         *config.Config
	mu                    sync.RWMutex
}

// NewHapticConfigService creates a new HapticConfigService and performs
// the initial load. A listener can be set later via SetListener.
func NewHapticConfigService(operationalConfigPath string, logger customlog.Logger) (HapticConfigService, error) {
	if operationalConfigPath == "" {
		return nil, fmt.Errorf("operational configuration path cannot be empty")
	}
	if logger == nil {
		logger, _ = customlog.NewLogrusLogger("info", "")
		logger.Warnf("No logger provided to HapticConfigService, using default.")
	}

	service := &hapticConfigService{
		operationalConfigPath: operationalConfigPath,
		logger:                logger,
	}

	if err := service.LoadConfig(); err != nil {
		return nil, err
	}

	logger.Infof("HapticConfigService initialized for path: %s", operationalConfigPath)
	return service, nil
}

// LoadConfig reads the operational config file from disk and updates the
// current config.
func (s *hapticConfigService) LoadConfig() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Infof("Loading operational configuration from: %s", s.operationalConfigPath)
	cfg, err := config.LoadConfig(s.operationalConfigPath)
	if err != nil {
		s.logger.Errorf("Error loading operational config '%s': %v", s.operationalConfigPath, err)
		return err
	}

	s.currentConfig = cfg
	s.logger.Infof("Successfully loaded operational configuration ID: %s, Version: %s", cfg.ConfigID, cfg.Version)
	return nil
}

// GetCurrentConfig returns the currently loaded operational configuration.
// Treat the result as read-only; modifications go through UpdateConfig.
func (s *hapticConfigService) GetCurrentConfig() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentConfig
}

// GetCurrentConfigYAML returns the raw YAML content of the config file,
// for display/editing by clients.
func (s *hapticConfigService) GetCurrentConfigYAML() ([]byte, error) {
	s.mu.RLock()
	path := s.operationalConfigPath
	s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading operational config file '%s': %w", path, err)
	}
	return data, nil
}

// UpdateConfig validates, persists and applies a new configuration, then
// notifies the registered listener.
func (s *hapticConfigService) UpdateConfig(newConfigYAML []byte) error {
	var cfg config.Config
	if err := yaml.Unmarshal(newConfigYAML, &cfg); err != nil {
		return fmt.Errorf("invalid YAML format: %w", err)
	}
	if cfg.DeviceServer.URL == "" {
		return fmt.Errorf("validation failed: missing required field device_server.url")
	}

	if err := s.PersistConfig(newConfigYAML); err != nil {
		return err
	}

	if err := s.LoadConfig(); err != nil {
		return err
	}

	s.mu.RLock()
	listener := s.listener
	current := s.currentConfig
	s.mu.RUnlock()

	if listener != nil {
		listener(current)
	}

	s.logger.Infof("Operational configuration updated (ID: %s)", cfg.ConfigID)
	return nil
}

// PersistConfig writes the raw YAML to the operational config path
func (s *hapticConfigService) PersistConfig(yamlData []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.operationalConfigPath, yamlData, 0644); err != nil {
		return fmt.Errorf("error writing operational config file '%s': %w", s.operationalConfigPath, err)
	}
	return nil
}

// SetListener registers the config change listener
func (s *hapticConfigService) SetListener(l ConfigListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}
