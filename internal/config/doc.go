// Package config handles configuration loading for vistly-bot.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path given on the command line
//  2. Path from VISTLY_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/vistly/bot.yaml
//  4. ~/.config/vistly/bot.yaml
//
// Files ending in .toml are decoded as TOML; anything else is YAML. A .env
// file in the same directory is loaded before expansion and never overrides
// variables that are already set.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	telegram:
//	  token: "${TELEGRAM_BOT_TOKEN}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	bot:
//	  dedupe_ttl: "10m"
//	  turn_timeout: "30s"
//
// # Configuration Sections
//
// Frontends (at least one must be enabled):
//
//	telegram:
//	  enabled: true
//	  token: "123:abc"
//	  bot_username: "vistly_bot"   # enables "View in bot" links
//	  poll_timeout: "30s"
//	  lock_file: "/var/lib/vistly/telegram.lock"
//
//	matrix:
//	  enabled: false
//	  homeserver: "https://matrix.org"
//	  user_id: "@vistly:matrix.org"
//	  access_token: "syt_..."
//	  recovery_key: ""             # set to enable E2EE
//	  allowed_rooms: ["!abc:matrix.org"]
//	  data_dir: "./matrix"
//
// Catalog providers (at least one api_key is required). Kinopoisk serves
// Cyrillic queries and OMDb everything else:
//
//	providers:
//	  kinopoisk:
//	    api_key: "..."
//	    base_url: "https://api.kinopoisk.dev"
//	    timeout: "10s"
//	    rps: 5
//	    max_retries: 2
//	  omdb:
//	    api_key: "..."
//
// Storage:
//
//	database:
//	  driver: "sqlite"             # or "postgres"
//	  path: "vistly.db"
//	  dsn: "postgres://..."
//	  timeout: "5s"
//
// Engine, ops server, logging and metrics:
//
//	bot:
//	  sessions: "store"            # or "memory"
//	  dedupe_ttl: "10m"
//	  dedupe_size: 10000
//	  turn_timeout: "30s"
//	http:
//	  addr: "127.0.0.1:8090"
//	logging:
//	  level: "info"
//	  format: "text"               # or "json"
//	metrics:
//	  enabled: true
//	  path: "/metrics"
package config
