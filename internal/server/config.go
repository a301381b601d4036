package server

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formengine/pkg/options"
)

// Config holds server configuration. Flags override values read from the
// YAML file.
type Config struct {
	Addr        string            `yaml:"addr"`
	SchemaDir   string            `yaml:"schemaDir"`
	Database    string            `yaml:"database"`
	OptionLists map[string]string `yaml:"optionLists"`

	// AllowedOrigins lists host patterns allowed to open the event stream
	// from another origin. Empty allows same-origin requests only.
	AllowedOrigins []string      `yaml:"allowedOrigins"`
	Sessions       SessionConfig `yaml:"sessions"`
	Log            LogConfig     `yaml:"log"`
}

// SessionConfig bounds how long sessions live.
type SessionConfig struct {
	MaxAge          time.Duration `yaml:"maxAge"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Addr:      ":8080",
		SchemaDir: "forms",
		Sessions: SessionConfig{
			MaxAge:          24 * time.Hour,
			IdleTimeout:     30 * time.Minute,
			CleanupInterval: time.Minute,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads path over DefaultConfig. An empty path returns the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("server: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("server: parse config: %w", err)
	}
	if _, err := parseLevel(cfg.Log.Level); err != nil {
		return cfg, err
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return cfg, fmt.Errorf("server: unknown log format %q", cfg.Log.Format)
	}
	return cfg, nil
}

// LoadOptionLists reads every configured option list file into a registry,
// keyed by its configured name.
func (c Config) LoadOptionLists() (*options.Registry, error) {
	reg := options.NewRegistry()
	for name, path := range c.OptionLists {
		if err := reg.LoadFile(os.DirFS(filepath.Dir(path)), name, filepath.Base(path)); err != nil {
			return nil, fmt.Errorf("server: option list %s: %w", name, err)
		}
	}
	return reg, nil
}

// Logger builds the slog logger described by the config.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if raw == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("server: unknown log level %q", raw)
	}
	return level, nil
}
