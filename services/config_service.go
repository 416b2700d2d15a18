package services

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/open-handtrack/pipeline/pkg/config"
	customlog "github.com/open-handtrack/pipeline/pkg/log"
)

// ErrInvalidConfig marks configuration updates rejected before persistence,
// either malformed YAML or a failed semantic validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigService manages the operational pipeline configuration: the YAML file
// on disk plus the in-memory copy the daemons run with. Updates are validated
// and persisted before they replace the active config.
type ConfigService interface {
	Load() error
	Current() *config.Config
	CurrentYAML() ([]byte, error)
	Update(newYAML []byte) error
	SetOnUpdate(fn func(*config.Config))
}

type configService struct {
	path   string
	logger customlog.Logger

	mu       sync.RWMutex
	current  *config.Config
	onUpdate func(*config.Config)
}

// NewConfigService creates a config service for the given file path and loads
// it. A missing or invalid file is not fatal; the service starts without an
// active config and the file can be supplied later via Update.
func NewConfigService(path string, logger customlog.Logger) (ConfigService, error) {
	if path == "" {
		return nil, fmt.Errorf("configuration path cannot be empty")
	}

	s := &configService{path: path, logger: logger}
	if err := s.Load(); err != nil {
		logger.Warnf("Initial load of config '%s' failed: %v", path, err)
		return s, nil
	}
	return s, nil
}

// Load reads the config file from disk and replaces the active config.
func (s *configService) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := config.LoadConfig(s.path)
	if err != nil {
		return err
	}
	s.current = cfg
	s.logger.Infof("Loaded pipeline configuration from %s", s.path)
	return nil
}

// Current returns the active config. Treat as read-only; changes go through
// Update.
func (s *configService) Current() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// CurrentYAML returns the raw on-disk YAML, for display before editing.
func (s *configService) CurrentYAML() ([]byte, error) {
	s.mu.RLock()
	path := s.path
	s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file '%s': %w", path, err)
	}
	return data, nil
}

// Update validates the provided YAML against the defaults-overlay rules,
// persists it, and swaps the active config. The update callback, if set, runs
// on its own goroutine so a slow consumer never blocks the API.
func (s *configService) Update(newYAML []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := config.DefaultConfig()
	if err := yaml.Unmarshal(newYAML, cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := os.WriteFile(s.path, newYAML, 0644); err != nil {
		return fmt.Errorf("writing config file '%s': %w", s.path, err)
	}

	s.current = cfg
	s.logger.Infof("Updated pipeline configuration at %s", s.path)

	if s.onUpdate != nil {
		go s.onUpdate(cfg)
	}
	return nil
}

// SetOnUpdate registers a callback invoked after each successful Update.
func (s *configService) SetOnUpdate(fn func(*config.Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = fn
}
