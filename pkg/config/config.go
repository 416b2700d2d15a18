package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the pipeline configuration shared by the producer-side
// daemon (trackerd) and the consumer-side daemon (viewerd).
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Client    ClientConfig    `yaml:"client" json:"client"`
	Scheduler SchedulerConfig `yaml:"scheduler" json:"scheduler"`
	Mapper    MapperConfig    `yaml:"mapper" json:"mapper"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	LogPath string `yaml:"log_path,omitempty" json:"log_path,omitempty"`
}

// ServerConfig holds the stream server settings
type ServerConfig struct {
	BindAddress    string `yaml:"bind_address" json:"bind_address"`
	Port           int    `yaml:"port" json:"port"`
	HTTPPort       int    `yaml:"http_port" json:"http_port"`
	PollIntervalMs int    `yaml:"poll_interval_ms" json:"poll_interval_ms"`
	SendIntervalMs int    `yaml:"send_interval_ms" json:"send_interval_ms"`
	WriteTimeoutMs int    `yaml:"write_timeout_ms" json:"write_timeout_ms"`
}

// ClientConfig holds the stream receiver settings
type ClientConfig struct {
	ServerAddress        string `yaml:"server_address" json:"server_address"`
	ServerPort           int    `yaml:"server_port" json:"server_port"`
	HTTPPort             int    `yaml:"http_port" json:"http_port"`
	DialTimeoutMs        int    `yaml:"dial_timeout_ms" json:"dial_timeout_ms"`
	ReconnectMaxAttempts int    `yaml:"reconnect_max_attempts" json:"reconnect_max_attempts"`
	ReconnectDelayMs     int    `yaml:"reconnect_delay_ms" json:"reconnect_delay_ms"`
	StaleTimeoutMs       int    `yaml:"stale_timeout_ms" json:"stale_timeout_ms"`
}

// SchedulerConfig holds the scene update timer settings
type SchedulerConfig struct {
	UpdateIntervalMs int `yaml:"update_interval_ms" json:"update_interval_ms"`
}

// MapperConfig holds the camera-space to scene-space mapping settings
type MapperConfig struct {
	Scale          float64    `yaml:"scale" json:"scale"`
	Offset         [3]float64 `yaml:"offset" json:"offset"`
	FlipX          bool       `yaml:"flip_x" json:"flip_x"`
	FlipY          bool       `yaml:"flip_y" json:"flip_y"`
	FlipZ          bool       `yaml:"flip_z" json:"flip_z"`
	SwapYZ         bool       `yaml:"swap_yz" json:"swap_yz"`
	HandSpacing    float64    `yaml:"hand_spacing" json:"hand_spacing"`
	HandColors     []string   `yaml:"hand_colors" json:"hand_colors"`
	AbsentDebounce int        `yaml:"absent_debounce" json:"absent_debounce"`
}

// DefaultConfig returns the built-in defaults. The mapper values reproduce
// the camera-to-scene convention the original viewer used: centered
// coordinates, inverted vertical axis, depth mapped onto the scene's second
// axis, half-scale, and one scene unit between hand slots.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info"},
		Server: ServerConfig{
			BindAddress:    "0.0.0.0",
			Port:           5555,
			HTTPPort:       8080,
			PollIntervalMs: 5,
			SendIntervalMs: 5,
			WriteTimeoutMs: 1000,
		},
		Client: ClientConfig{
			ServerAddress:        "127.0.0.1",
			ServerPort:           5555,
			HTTPPort:             8081,
			DialTimeoutMs:        2000,
			ReconnectMaxAttempts: 10,
			ReconnectDelayMs:     500,
			StaleTimeoutMs:       1000,
		},
		Scheduler: SchedulerConfig{UpdateIntervalMs: 5},
		Mapper: MapperConfig{
			Scale:          0.5,
			FlipY:          true,
			FlipZ:          true,
			SwapYZ:         true,
			HandSpacing:    1.0,
			HandColors:     []string{"#ff0000", "#0080ff"},
			AbsentDebounce: 3,
		},
	}
}

// LoadConfig loads configuration from the specified file path on top of the
// built-in defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range", c.Server.Port)
	}
	if c.Client.ServerPort < 0 || c.Client.ServerPort > 65535 {
		return fmt.Errorf("invalid config: client.server_port %d out of range", c.Client.ServerPort)
	}
	if c.Server.PollIntervalMs <= 0 {
		return fmt.Errorf("invalid config: server.poll_interval_ms must be positive")
	}
	if c.Server.SendIntervalMs <= 0 {
		return fmt.Errorf("invalid config: server.send_interval_ms must be positive")
	}
	if c.Scheduler.UpdateIntervalMs <= 0 {
		return fmt.Errorf("invalid config: scheduler.update_interval_ms must be positive")
	}
	if c.Client.ReconnectMaxAttempts <= 0 {
		return fmt.Errorf("invalid config: client.reconnect_max_attempts must be positive")
	}
	if c.Client.ReconnectDelayMs < 0 {
		return fmt.Errorf("invalid config: client.reconnect_delay_ms must not be negative")
	}
	if c.Mapper.Scale == 0 {
		return fmt.Errorf("invalid config: mapper.scale must not be zero")
	}
	if c.Mapper.AbsentDebounce <= 0 {
		return fmt.Errorf("invalid config: mapper.absent_debounce must be positive")
	}
	if len(c.Mapper.HandColors) > 2 {
		return fmt.Errorf("invalid config: mapper.hand_colors supports at most 2 entries")
	}
	return nil
}

// Duration helpers so callers do not repeat millisecond conversions.

func (s ServerConfig) PollInterval() time.Duration { return msToDuration(s.PollIntervalMs) }
func (s ServerConfig) SendInterval() time.Duration { return msToDuration(s.SendIntervalMs) }
func (s ServerConfig) WriteTimeout() time.Duration { return msToDuration(s.WriteTimeoutMs) }

func (c ClientConfig) DialTimeout() time.Duration    { return msToDuration(c.DialTimeoutMs) }
func (c ClientConfig) ReconnectDelay() time.Duration { return msToDuration(c.ReconnectDelayMs) }
func (c ClientConfig) StaleTimeout() time.Duration   { return msToDuration(c.StaleTimeoutMs) }

func (s SchedulerConfig) UpdateInterval() time.Duration { return msToDuration(s.UpdateIntervalMs) }

func msToDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
