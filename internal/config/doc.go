// Package config handles configuration loading for nexus-chat.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. Every field has a default, so a missing config file at the
// default location is not an error.
//
// # Configuration File
//
// Locations (in order):
//
//  1. Path from NEXUS_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/nexus/chat.yaml
//  3. ~/.config/nexus/chat.yaml
//
// A .env file in the working directory is loaded into the environment first.
// Files ending in .toml are parsed as TOML; anything else as YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	server:
//	  ws_url: "wss://${NEXUS_HOST}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	session:
//	  reconnect_delay: "3s"
//	  thinking_tick: "100ms"
//	  request_timeout: "0s"   # 0 disables the client-side deadline
//	audio:
//	  poll_interval: "1500ms"
//
// # Configuration Sections
//
// Backend endpoints:
//
//	server:
//	  ws_url: "ws://localhost:8000"     # connects to {ws_url}/ws/{user_id}
//	  http_url: "http://localhost:8000" # GET {http_url}/audio_status/{id}
//	  user_id: ""                       # random UUID when empty
//	  token_file: ""                    # NEXUS_TOKEN takes precedence
//
// Voice clips:
//
//	audio:
//	  enabled: true
//	  max_attempts: 20
//	  poll_interval: "1500ms"
//	  player_command: "mpv --no-video --speed=1.15"
//	  muted: false
//
// Display, logging and metrics:
//
//	render:
//	  format: "terminal"   # terminal, plain or html
//	logging:
//	  level: "info"
//	  format: "text"       # text or json
//	  file: ""             # stderr when empty
//	metrics:
//	  enabled: false
//	  addr: "127.0.0.1:9464"
//	  path: "/metrics"
package config
