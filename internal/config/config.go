package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the bridge configuration.
const (
	DefaultHost           = "0.0.0.0"
	DefaultHTTPPort       = 8080
	DefaultWSPort         = 8081
	DefaultMaxAlerts      = 1000
	DefaultMaxConnections = 100
	DefaultWorkers        = 4
	DefaultSendTimeout    = 1 * time.Second
	DefaultTokenEnv       = "AUTH_TOKEN"
)

// Config holds all bridge settings. Values come from defaults, then an
// optional YAML file, then environment overrides, in that order.
type Config struct {
	// Host is the bind address for both listeners (default 0.0.0.0).
	Host string `yaml:"host"`

	// HTTPPort serves the webhook, health, and metrics endpoints (default 8080).
	HTTPPort int `yaml:"http_port"`

	// WSPort serves the subscriber push channel (default 8081).
	WSPort int `yaml:"ws_port"`

	// Auth configures the shared-secret check on webhook and subscribe.
	Auth AuthConfig `yaml:"auth"`

	// Limits bounds in-memory resource usage.
	Limits LimitsConfig `yaml:"limits"`

	// Broadcast tunes fan-out behaviour.
	Broadcast BroadcastConfig `yaml:"broadcast"`

	// Log configures verbosity and optional file output.
	Log LogConfig `yaml:"log"`
}

// AuthConfig controls the optional shared-secret token check.
type AuthConfig struct {
	// Enabled turns the token check on (default off).
	Enabled bool `yaml:"enabled"`

	// TokenEnv names the environment variable holding the expected token.
	// Defaults to AUTH_TOKEN.
	TokenEnv string `yaml:"token_env"`
}

// Token returns the expected shared secret resolved from the environment.
// Resolving at call time means a token rotated via the environment plus a
// config reload applies without restart.
func (a AuthConfig) Token() string {
	env := a.TokenEnv
	if env == "" {
		env = DefaultTokenEnv
	}
	return os.Getenv(env)
}

// LimitsConfig bounds the registry and the connection set.
type LimitsConfig struct {
	// MaxAlerts is the registry capacity (default 1000). At capacity the
	// oldest alert by starts_at is evicted to admit a new one.
	MaxAlerts int `yaml:"max_alerts"`

	// MaxConnections caps concurrent subscriber sessions (default 100).
	MaxConnections int `yaml:"max_connections"`
}

// BroadcastConfig tunes push delivery.
type BroadcastConfig struct {
	// Workers bounds fan-out parallelism (default 4).
	Workers int `yaml:"workers"`

	// SendTimeout is how long one broadcast waits on a single stalled
	// subscriber before dropping it (default 1s).
	SendTimeout time.Duration `yaml:"send_timeout"`
}

// LogConfig controls logging output.
type LogConfig struct {
	// Level is one of: debug | info | warn | error (default info).
	Level string `yaml:"level"`

	// File, when set, sends logs to a size-rotated file instead of stdout.
	File string `yaml:"file"`
}

// ParseLevel converts the configured level string to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Host:     DefaultHost,
		HTTPPort: DefaultHTTPPort,
		WSPort:   DefaultWSPort,
		Auth: AuthConfig{
			TokenEnv: DefaultTokenEnv,
		},
		Limits: LimitsConfig{
			MaxAlerts:      DefaultMaxAlerts,
			MaxConnections: DefaultMaxConnections,
		},
		Broadcast: BroadcastConfig{
			Workers:     DefaultWorkers,
			SendTimeout: DefaultSendTimeout,
		},
		Log: LogConfig{Level: "info"},
	}
}

// applyEnv overlays the environment variables understood since the first
// deployment of the bridge: HOST, HTTP_PORT, WS_PORT, ENABLE_AUTH,
// MAX_ALERTS, MAX_CONNECTIONS, WORKERS, SEND_TIMEOUT, LOG_LEVEL, LOG_FILE.
func applyEnv(cfg *Config) {
	if v := os.Getenv("HOST"); v != "" {
		cfg.Host = v
	}
	envInt("HTTP_PORT", &cfg.HTTPPort)
	envInt("WS_PORT", &cfg.WSPort)
	envBool("ENABLE_AUTH", &cfg.Auth.Enabled)
	envInt("MAX_ALERTS", &cfg.Limits.MaxAlerts)
	envInt("MAX_CONNECTIONS", &cfg.Limits.MaxConnections)
	envInt("WORKERS", &cfg.Broadcast.Workers)
	if v := os.Getenv("SEND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Broadcast.SendTimeout = d
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(name string, dst *bool) {
	if v := os.Getenv(name); v != "" {
		*dst = strings.EqualFold(v, "true") || v == "1"
	}
}

// validate checks structural constraints on the assembled configuration.
func validate(cfg *Config) error {
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("http_port %d is out of range [1, 65535]", cfg.HTTPPort)
	}
	if cfg.WSPort <= 0 || cfg.WSPort > 65535 {
		return fmt.Errorf("ws_port %d is out of range [1, 65535]", cfg.WSPort)
	}
	if cfg.HTTPPort == cfg.WSPort {
		return fmt.Errorf("http_port and ws_port must differ (both %d)", cfg.HTTPPort)
	}
	if cfg.Limits.MaxAlerts <= 0 {
		return fmt.Errorf("limits.max_alerts must be positive")
	}
	if cfg.Limits.MaxConnections <= 0 {
		return fmt.Errorf("limits.max_connections must be positive")
	}
	if cfg.Broadcast.Workers <= 0 {
		return fmt.Errorf("broadcast.workers must be positive")
	}
	if cfg.Broadcast.SendTimeout <= 0 {
		return fmt.Errorf("broadcast.send_timeout must be positive")
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return err
	}
	if cfg.Auth.Enabled && cfg.Auth.Token() == "" {
		return fmt.Errorf("auth enabled but %s is empty", cfg.Auth.tokenEnvName())
	}
	return nil
}

func (a AuthConfig) tokenEnvName() string {
	if a.TokenEnv != "" {
		return a.TokenEnv
	}
	return DefaultTokenEnv
}
