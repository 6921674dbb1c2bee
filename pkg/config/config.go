// Package config loads and validates the replaykit configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config represents the replaykit configuration
type Config struct {
	DataDir string  `yaml:"data_dir"`
	Decoder Decoder `yaml:"decoder"`
	Log     Log     `yaml:"log"`
	Metrics Metrics `yaml:"metrics"`
	Logging Logging `yaml:"logging"`
}

// Decoder tunes the entity engine and the runner driving it
type Decoder struct {
	// MaxFieldPathOps bounds the field path operations of one delta block.
	MaxFieldPathOps int `yaml:"max_field_path_ops"`
	// SkipFullPackets ignores full packets once the first one was applied.
	SkipFullPackets bool `yaml:"skip_full_packets"`
	// SnapshotInterval is the tick distance between stored snapshots; zero
	// stores only the final snapshot.
	SnapshotInterval uint32 `yaml:"snapshot_interval"`
	// Workers bounds how many replays decode at once.
	Workers int `yaml:"workers"`
}

// Log configures message log writing
type Log struct {
	FsyncInterval time.Duration `yaml:"fsync_interval"`
	BufferSize    int           `yaml:"buffer_size"`
	CompressAbove int           `yaml:"compress_above"`
}

// Metrics configures the metrics endpoint
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Decoder: Decoder{
			MaxFieldPathOps:  16384,
			SnapshotInterval: 1800,
			Workers:          4,
		},
		Log: Log{
			FsyncInterval: time.Second,
			BufferSize:    64 * 1024,
			CompressAbove: 512,
		},
		Metrics: Metrics{
			Enabled: false,
			Addr:    "127.0.0.1:9108",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from the specified path. Keys missing from
// the file keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// BootstrapConfig writes a default configuration and creates its data
// directories
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
	}

	for _, dir := range []string{config.LogDir(), config.SnapshotDir()} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./replaykit.yaml"
	}

	// For Linux/macOS, use ~/.config/replaykit/config.yaml
	return filepath.Join(homeDir, ".config", "replaykit", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}

// LogDir is where message logs are written.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// SnapshotDir holds the snapshot database.
func (c *Config) SnapshotDir() string {
	return filepath.Join(c.DataDir, "snapshots")
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("%w: data_dir is empty", ErrInvalidConfig))
	}
	if c.Decoder.MaxFieldPathOps < 0 {
		errs = append(errs, fmt.Errorf("%w: decoder.max_field_path_ops must not be negative", ErrInvalidConfig))
	}
	if c.Decoder.Workers < 1 {
		errs = append(errs, fmt.Errorf("%w: decoder.workers must be at least 1", ErrInvalidConfig))
	}
	if c.Log.BufferSize < 0 || c.Log.CompressAbove < 0 || c.Log.FsyncInterval < 0 {
		errs = append(errs, fmt.Errorf("%w: log settings must not be negative", ErrInvalidConfig))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, fmt.Errorf("%w: metrics.addr is required when metrics are enabled", ErrInvalidConfig))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: logging.format %q", ErrInvalidConfig, c.Logging.Format))
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to a slog level. The empty name is info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: logging.level %q", ErrInvalidConfig, name)
}

// NewLogger builds the process logger writing to w.
func NewLogger(l Logging, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
