// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	configPath := writeConfig(t, "chat.yaml", `
server:
  ws_url: "ws://backend:8000"
  http_url: "http://backend:8000"
  user_id: "user-42"

session:
  reconnect_delay: "5s"
  thinking_tick: "50ms"
  request_timeout: "2m"

audio:
  enabled: true
  max_attempts: 10
  poll_interval: "2s"
  player_command: "mpv --no-video"
  muted: true

render:
  format: "plain"

logging:
  level: "debug"
  format: "json"
  file: "/tmp/nexus.log"

metrics:
  enabled: true
  addr: ":9100"
  path: "/metrics"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.WSURL != "ws://backend:8000" {
		t.Errorf("Server.WSURL = %q, want %q", cfg.Server.WSURL, "ws://backend:8000")
	}
	if cfg.Server.UserID != "user-42" {
		t.Errorf("Server.UserID = %q, want %q", cfg.Server.UserID, "user-42")
	}
	if cfg.Session.ReconnectDelay != 5*time.Second {
		t.Errorf("Session.ReconnectDelay = %v, want %v", cfg.Session.ReconnectDelay, 5*time.Second)
	}
	if cfg.Session.ThinkingTick != 50*time.Millisecond {
		t.Errorf("Session.ThinkingTick = %v, want %v", cfg.Session.ThinkingTick, 50*time.Millisecond)
	}
	if cfg.Session.RequestTimeout != 2*time.Minute {
		t.Errorf("Session.RequestTimeout = %v, want %v", cfg.Session.RequestTimeout, 2*time.Minute)
	}
	if cfg.Audio.MaxAttempts != 10 {
		t.Errorf("Audio.MaxAttempts = %d, want 10", cfg.Audio.MaxAttempts)
	}
	if cfg.Audio.PollInterval != 2*time.Second {
		t.Errorf("Audio.PollInterval = %v, want %v", cfg.Audio.PollInterval, 2*time.Second)
	}
	if cfg.Audio.PlayerCommand != "mpv --no-video" {
		t.Errorf("Audio.PlayerCommand = %q", cfg.Audio.PlayerCommand)
	}
	if !cfg.Audio.Muted {
		t.Error("Audio.Muted = false, want true")
	}
	if cfg.Render.Format != "plain" {
		t.Errorf("Render.Format = %q, want plain", cfg.Render.Format)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" || cfg.Logging.File != "/tmp/nexus.log" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
}

func TestLoad_ValidTOML(t *testing.T) {
	configPath := writeConfig(t, "chat.toml", `
[server]
ws_url = "wss://nexus.example.com"
http_url = "https://nexus.example.com"

[session]
reconnect_delay = "1s"

[audio]
enabled = false
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.WSURL != "wss://nexus.example.com" {
		t.Errorf("Server.WSURL = %q", cfg.Server.WSURL)
	}
	if cfg.Session.ReconnectDelay != time.Second {
		t.Errorf("Session.ReconnectDelay = %v, want 1s", cfg.Session.ReconnectDelay)
	}
	if cfg.Audio.Enabled {
		t.Error("Audio.Enabled = true, want false")
	}
	// Untouched sections keep defaults
	if cfg.Session.ThinkingTick != 100*time.Millisecond {
		t.Errorf("Session.ThinkingTick = %v, want default 100ms", cfg.Session.ThinkingTick)
	}
}

func TestLoad_DefaultsForMissingFields(t *testing.T) {
	configPath := writeConfig(t, "chat.yaml", `
server:
  ws_url: "ws://localhost:9000"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	def := Default()
	if cfg.Server.HTTPURL != def.Server.HTTPURL {
		t.Errorf("Server.HTTPURL = %q, want default %q", cfg.Server.HTTPURL, def.Server.HTTPURL)
	}
	if cfg.Session.ReconnectDelay != 3*time.Second {
		t.Errorf("Session.ReconnectDelay = %v, want 3s", cfg.Session.ReconnectDelay)
	}
	if cfg.Session.RequestTimeout != 0 {
		t.Errorf("Session.RequestTimeout = %v, want 0 (disabled)", cfg.Session.RequestTimeout)
	}
	if cfg.Audio.MaxAttempts != 20 || cfg.Audio.PollInterval != 1500*time.Millisecond {
		t.Errorf("Audio = %+v, want 20 attempts every 1.5s", cfg.Audio)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_NEXUS_HOST", "expanded-host")
	t.Setenv("TEST_NEXUS_USER", "expanded-user")

	configPath := writeConfig(t, "chat.yaml", `
server:
  ws_url: "ws://${TEST_NEXUS_HOST}:8000"
  http_url: "http://${TEST_NEXUS_HOST}:8000"
  user_id: "${TEST_NEXUS_USER}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.WSURL != "ws://expanded-host:8000" {
		t.Errorf("Server.WSURL = %q, want %q", cfg.Server.WSURL, "ws://expanded-host:8000")
	}
	if cfg.Server.UserID != "expanded-user" {
		t.Errorf("Server.UserID = %q, want %q", cfg.Server.UserID, "expanded-user")
	}
}

func TestLoad_UnsetEnvVarExpandsEmpty(t *testing.T) {
	configPath := writeConfig(t, "chat.yaml", `
server:
  ws_url: "ws://localhost:8000"
  user_id: "${NEXUS_TEST_DEFINITELY_UNSET}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.UserID != "" {
		t.Errorf("Server.UserID = %q, want empty", cfg.Server.UserID)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, "chat.yaml", `
session:
  reconnect_delay: "soon"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "reconnect_delay") {
		t.Errorf("error = %v, want mention of reconnect_delay", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "chat.yaml", "server: [unclosed")
	if _, err := Load(configPath); err == nil {
		t.Fatal("Load() expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"missing ws url", func(c *Config) { c.Server.WSURL = "" }, "server.ws_url is required"},
		{"http scheme for ws url", func(c *Config) { c.Server.WSURL = "http://x" }, "ws or wss"},
		{"bad http url scheme", func(c *Config) { c.Server.HTTPURL = "ftp://x" }, "http or https"},
		{"http url not needed without audio", func(c *Config) {
			c.Audio.Enabled = false
			c.Server.HTTPURL = ""
		}, ""},
		{"zero attempts", func(c *Config) { c.Audio.MaxAttempts = 0 }, "max_attempts"},
		{"zero poll interval", func(c *Config) { c.Audio.PollInterval = 0 }, "poll_interval"},
		{"zero reconnect delay", func(c *Config) { c.Session.ReconnectDelay = 0 }, "reconnect_delay"},
		{"negative timeout", func(c *Config) { c.Session.RequestTimeout = -time.Second }, "request_timeout"},
		{"unknown render format", func(c *Config) { c.Render.Format = "rtf" }, "render.format"},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"metrics without addr", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Addr = ""
		}, "metrics.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestPath(t *testing.T) {
	t.Run("env override", func(t *testing.T) {
		t.Setenv("NEXUS_CONFIG", "/etc/nexus.toml")
		if got := Path(); got != "/etc/nexus.toml" {
			t.Errorf("Path() = %q", got)
		}
	})

	t.Run("xdg config home", func(t *testing.T) {
		t.Setenv("NEXUS_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", "/xdg")
		if got := Path(); got != filepath.Join("/xdg", "nexus", "chat.yaml") {
			t.Errorf("Path() = %q", got)
		}
	})
}

func TestLoadDefault_MissingDefaultFile(t *testing.T) {
	t.Setenv("NEXUS_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	chdir(t, t.TempDir())

	cfg, path, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty for built-in defaults", path)
	}
	if cfg.Server.WSURL != Default().Server.WSURL {
		t.Errorf("Server.WSURL = %q, want default", cfg.Server.WSURL)
	}
}

func TestLoadDefault_ExplicitMissingFile(t *testing.T) {
	t.Setenv("NEXUS_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	chdir(t, t.TempDir())

	if _, _, err := LoadDefault(); err == nil {
		t.Fatal("LoadDefault() expected error for missing NEXUS_CONFIG file")
	}
}

func TestLoadDefault_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("NEXUS_TEST_DOTENV_HOST", "")
	os.Unsetenv("NEXUS_TEST_DOTENV_HOST")

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("NEXUS_TEST_DOTENV_HOST=from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	configPath := writeConfig(t, "chat.yaml", `
server:
  ws_url: "ws://${NEXUS_TEST_DOTENV_HOST}:8000"
`)
	t.Setenv("NEXUS_CONFIG", configPath)

	cfg, _, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}
	if cfg.Server.WSURL != "ws://from-dotenv:8000" {
		t.Errorf("Server.WSURL = %q, want value from .env", cfg.Server.WSURL)
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
