// ABOUTME: Configuration loading and parsing for nexus-chat
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete nexus-chat configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Session SessionConfig `yaml:"session" toml:"session"`
	Audio   AudioConfig   `yaml:"audio" toml:"audio"`
	Render  RenderConfig  `yaml:"render" toml:"render"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds the backend endpoints
type ServerConfig struct {
	// WSURL is the WebSocket base, e.g. ws://localhost:8000. The client
	// connects to {WSURL}/ws/{UserID}.
	WSURL string `yaml:"ws_url" toml:"ws_url"`
	// HTTPURL is the base for /audio_status requests.
	HTTPURL string `yaml:"http_url" toml:"http_url"`
	// UserID identifies the conversation; a random one is generated when empty.
	UserID    string `yaml:"user_id" toml:"user_id"`
	TokenFile string `yaml:"token_file" toml:"token_file"`
}

// SessionConfig holds request/response timing
type SessionConfig struct {
	ReconnectDelay time.Duration `yaml:"-" toml:"-"`
	ThinkingTick   time.Duration `yaml:"-" toml:"-"`
	RequestTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	ReconnectDelayRaw string `yaml:"reconnect_delay" toml:"reconnect_delay"`
	ThinkingTickRaw   string `yaml:"thinking_tick" toml:"thinking_tick"`
	RequestTimeoutRaw string `yaml:"request_timeout" toml:"request_timeout"`
}

// AudioConfig holds voice clip polling and playback configuration
type AudioConfig struct {
	Enabled      bool          `yaml:"enabled" toml:"enabled"`
	MaxAttempts  int           `yaml:"max_attempts" toml:"max_attempts"`
	PollInterval time.Duration `yaml:"-" toml:"-"`
	// PlayerCommand is run with the clip URL appended; empty only logs the URL.
	PlayerCommand string `yaml:"player_command" toml:"player_command"`
	Muted         bool   `yaml:"muted" toml:"muted"`

	PollIntervalRaw string `yaml:"poll_interval" toml:"poll_interval"`
}

// RenderConfig selects how answers are displayed
type RenderConfig struct {
	Format string `yaml:"format" toml:"format"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
	// File receives log output; empty means stderr.
	File string `yaml:"file" toml:"file"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Addr    string `yaml:"addr" toml:"addr"`
	Path    string `yaml:"path" toml:"path"`
}

// Default returns a configuration pointing at a local backend.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			WSURL:   "ws://localhost:8000",
			HTTPURL: "http://localhost:8000",
		},
		Session: SessionConfig{
			ReconnectDelay: 3 * time.Second,
			ThinkingTick:   100 * time.Millisecond,
		},
		Audio: AudioConfig{
			Enabled:      true,
			MaxAttempts:  20,
			PollInterval: 1500 * time.Millisecond,
		},
		Render: RenderConfig{Format: "terminal"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9464",
			Path: "/metrics",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML. Values
// absent from the file keep their Default. Environment variables in the format
// ${VAR_NAME} are expanded. Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadDefault loads .env from the working directory, then the config file at
// Path(). A missing file at the default location yields Default(); a missing
// file named by NEXUS_CONFIG is an error.
func LoadDefault() (*Config, string, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	explicit := os.Getenv("NEXUS_CONFIG") != ""
	path := Path()
	cfg, err := Load(path)
	if err == nil {
		return cfg, path, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		if err := cfg.Validate(); err != nil {
			return nil, "", err
		}
		return cfg, "", nil
	}
	return nil, path, err
}

// Path returns the config file location.
// Priority: NEXUS_CONFIG env var > XDG_CONFIG_HOME/nexus/chat.yaml > ~/.config/nexus/chat.yaml
func Path() string {
	if envPath := os.Getenv("NEXUS_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "chat.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "nexus", "chat.yaml")
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.WSURL == "" {
		return fmt.Errorf("server.ws_url is required")
	}
	u, err := url.Parse(c.Server.WSURL)
	if err != nil {
		return fmt.Errorf("server.ws_url is not a valid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server.ws_url must use ws or wss scheme")
	}

	if c.Audio.Enabled {
		if c.Server.HTTPURL == "" {
			return fmt.Errorf("server.http_url is required when audio is enabled")
		}
		u, err := url.Parse(c.Server.HTTPURL)
		if err != nil {
			return fmt.Errorf("server.http_url is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("server.http_url must use http or https scheme")
		}
		if c.Audio.MaxAttempts < 1 {
			return fmt.Errorf("audio.max_attempts must be at least 1")
		}
		if c.Audio.PollInterval <= 0 {
			return fmt.Errorf("audio.poll_interval must be positive")
		}
	}

	if c.Session.ReconnectDelay <= 0 {
		return fmt.Errorf("session.reconnect_delay must be positive")
	}
	if c.Session.ThinkingTick <= 0 {
		return fmt.Errorf("session.thinking_tick must be positive")
	}
	if c.Session.RequestTimeout < 0 {
		return fmt.Errorf("session.request_timeout must not be negative")
	}

	switch c.Render.Format {
	case "terminal", "plain", "html":
	default:
		return fmt.Errorf("render.format must be one of terminal, plain, html")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"reconnect_delay", cfg.Session.ReconnectDelayRaw, &cfg.Session.ReconnectDelay},
		{"thinking_tick", cfg.Session.ThinkingTickRaw, &cfg.Session.ThinkingTick},
		{"request_timeout", cfg.Session.RequestTimeoutRaw, &cfg.Session.RequestTimeout},
		{"poll_interval", cfg.Audio.PollIntervalRaw, &cfg.Audio.PollInterval},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
