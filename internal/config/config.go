// Package config loads the host process configuration: listen port, logging,
// worker pool size, snapshot history and tracing.
//
// Values come from defaults, then config.toml (see GetConfigPath), then
// INKWELL_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/kalambet/inkwell/internal/settings"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Worker    WorkerConfig
	History   HistoryConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Port int
	// Token is the bearer token for the HTTP API. When empty, APIToken
	// generates one into the app-data dir.
	Token string
	// AllowedOrigins lists browser origins, comma-separated, that may open
	// the events websocket in addition to same-origin pages.
	AllowedOrigins string
}

// Origins splits AllowedOrigins into trimmed, non-empty entries.
func (s ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(s.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type LogConfig struct {
	Level  string
	Format string
}

type WorkerConfig struct {
	MaxInFlight int
}

type HistoryConfig struct {
	Enabled    bool
	MaxPerPath int
	DataDir    string
}

type TelemetryConfig struct {
	Traces bool
}

func defaults() Config {
	dataDir, err := settings.AppDataDir()
	if err != nil {
		dataDir = ""
	}
	return Config{
		Server: ServerConfig{
			Port: 4710,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Worker: WorkerConfig{
			MaxInFlight: 4,
		},
		History: HistoryConfig{
			Enabled:    true,
			MaxPerPath: 10,
			DataDir:    dataDir,
		},
	}
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return defaults()
}

// Load reads configuration from config.toml and applies INKWELL_* environment
// overrides. A missing file is not an error.
func Load() (Config, error) {
	_, path, err := GetConfigPath()
	if err != nil {
		return Config{}, err
	}
	return loadFromPath(path)
}

func loadFromPath(path string) (Config, error) {
	b, err := openFileBackend(path)
	if err != nil {
		return Config{}, err
	}
	return loadWith(b)
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d is out of range", c.Server.Port)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid config: log.level %q (want debug, info, warn or error)", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid config: log.format %q (want text or json)", c.Log.Format)
	}
	if c.Worker.MaxInFlight < 1 {
		return fmt.Errorf("invalid config: worker.max_in_flight must be at least 1, got %d", c.Worker.MaxInFlight)
	}
	if c.History.MaxPerPath < 1 {
		return fmt.Errorf("invalid config: history.max_per_path must be at least 1, got %d", c.History.MaxPerPath)
	}
	return nil
}
