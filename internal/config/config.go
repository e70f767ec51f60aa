// Package config loads the daemon configuration file. Every field has a
// working default; a missing file is not an error.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can use forms like "500ms"
// or "1m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	// ListenAddr is the HTTP address agents and the CLI talk to.
	ListenAddr string `yaml:"listen_addr"`
	// DatabasePath is the SQLite file holding guides, steps and state.
	DatabasePath string `yaml:"database_path"`

	Capture CaptureConfig `yaml:"capture"`

	// KeepAliveInterval is the recorder's wake-timer period.
	KeepAliveInterval Duration `yaml:"keep_alive_interval"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

type CaptureConfig struct {
	// ScrollThreshold is the minimum cumulative scroll distance, in CSS
	// pixels, that counts as a scroll interaction.
	ScrollThreshold float64 `yaml:"scroll_threshold"`
	// ScrollQuiet is the trailing debounce window for scroll events.
	ScrollQuiet Duration `yaml:"scroll_quiet"`
	// MaxTextLength bounds captured element text.
	MaxTextLength int `yaml:"max_text_length"`
	// MaxInputLength bounds captured input values.
	MaxInputLength int `yaml:"max_input_length"`
	// OverlaySettle is the pause between hiding the overlay and taking
	// the screenshot.
	OverlaySettle Duration `yaml:"overlay_settle"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddr:   "127.0.0.1:8941",
		DatabasePath: defaultDatabasePath(),
		Capture: CaptureConfig{
			ScrollThreshold: 300,
			ScrollQuiet:     Duration(500 * time.Millisecond),
			MaxTextLength:   80,
			MaxInputLength:  80,
			OverlaySettle:   Duration(60 * time.Millisecond),
		},
		KeepAliveInterval: Duration(25 * time.Second),
		LogLevel:          "info",
	}
}

func defaultDatabasePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "guidesnap.db"
	}
	return filepath.Join(dir, "guidesnap", "guidesnap.db")
}

// Load reads a YAML file over the defaults. An absent file yields the
// defaults; a malformed one is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// SlogLevel maps the configured log level to its slog value.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen_addr must not be empty")
	}
	if c.DatabasePath == "" {
		return errors.New("database_path must not be empty")
	}
	if c.Capture.ScrollThreshold < 0 {
		return errors.New("capture.scroll_threshold must not be negative")
	}
	if c.Capture.MaxTextLength <= 0 || c.Capture.MaxInputLength <= 0 {
		return errors.New("capture text bounds must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}
