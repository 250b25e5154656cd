// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, .env files, env var expansion, defaults and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

const minimalYAML = `
telegram:
  enabled: true
  token: "tg-token"
providers:
  omdb:
    api_key: "omdb-key"
`

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, "bot.yaml", `
telegram:
  enabled: true
  token: "tg-token"
  bot_username: "vistly_bot"
  poll_timeout: "45s"
  lock_file: "/tmp/vistly.lock"

matrix:
  enabled: true
  homeserver: "https://matrix.example"
  user_id: "@vistly:matrix.example"
  access_token: "mx-token"
  recovery_key: "EsT1 abcd"
  allowed_rooms:
    - "!room1:matrix.example"

providers:
  kinopoisk:
    api_key: "kp-key"
    base_url: "https://kp.example"
    timeout: "3s"
    rps: 2.5
    max_retries: 4
  omdb:
    api_key: "omdb-key"

database:
  driver: "postgres"
  dsn: "postgres://localhost/vistly"
  timeout: "2s"

bot:
  sessions: "memory"
  dedupe_ttl: "1m"
  dedupe_size: 50
  turn_timeout: "15s"

http:
  addr: ":9000"

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/prom"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telegram.Token != "tg-token" || cfg.Telegram.BotUsername != "vistly_bot" {
		t.Errorf("Telegram = %+v", cfg.Telegram)
	}
	if cfg.Telegram.PollTimeout != 45*time.Second {
		t.Errorf("Telegram.PollTimeout = %v, want 45s", cfg.Telegram.PollTimeout)
	}
	if !cfg.Matrix.E2EE() || len(cfg.Matrix.AllowedRooms) != 1 {
		t.Errorf("Matrix = %+v", cfg.Matrix)
	}
	assert.Equal(t, "matrix", filepath.Base(cfg.Matrix.DataDir))

	kp := cfg.Providers.Kinopoisk
	assert.Equal(t, "https://kp.example", kp.BaseURL)
	assert.Equal(t, 3*time.Second, kp.Timeout)
	assert.Equal(t, 2.5, kp.RPS)
	assert.Equal(t, 4, kp.MaxRetries)
	assert.Equal(t, DefaultProviderTimeout, cfg.Providers.OMDb.Timeout)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 2*time.Second, cfg.Database.Timeout)
	assert.Equal(t, SessionsMemory, cfg.Bot.Sessions)
	assert.Equal(t, time.Minute, cfg.Bot.DedupeTTL)
	assert.Equal(t, 50, cfg.Bot.DedupeSize)
	assert.Equal(t, 15*time.Second, cfg.Bot.TurnTimeout)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/prom", cfg.Metrics.Path)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "bot.yaml", minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, DefaultPollTimeout, cfg.Telegram.PollTimeout)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, SessionsStore, cfg.Bot.Sessions)
	assert.Equal(t, DefaultDedupeTTL, cfg.Bot.DedupeTTL)
	assert.Equal(t, DefaultDedupeSize, cfg.Bot.DedupeSize)
	assert.Equal(t, DefaultTurnTimeout, cfg.Bot.TurnTimeout)
	assert.Equal(t, DefaultHTTPAddr, cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Path)
	assert.False(t, cfg.Providers.Kinopoisk.Enabled())
	assert.True(t, cfg.Providers.OMDb.Enabled())
	assert.Equal(t, float64(DefaultProviderRPS), cfg.Providers.OMDb.RPS)
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "bot.toml", `
[telegram]
enabled = true
token = "tg-token"
poll_timeout = "10s"

[providers.kinopoisk]
api_key = "kp-key"
rps = 1.0

[bot]
turn_timeout = "5s"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tg-token", cfg.Telegram.Token)
	assert.Equal(t, 10*time.Second, cfg.Telegram.PollTimeout)
	assert.Equal(t, "kp-key", cfg.Providers.Kinopoisk.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Bot.TurnTimeout)
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("VISTLY_TEST_TG_TOKEN", "from-env")
	path := writeConfig(t, "bot.yaml", strings.Replace(minimalYAML, `"tg-token"`, `"${VISTLY_TEST_TG_TOKEN}"`, 1))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("VISTLY_TEST_OMDB=dotenv-key\nVISTLY_TEST_PRESET=dotenv\n"), 0o600))
	t.Setenv("VISTLY_TEST_PRESET", "already-set")
	t.Cleanup(func() { os.Unsetenv("VISTLY_TEST_OMDB") })

	path := filepath.Join(dir, "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram:
  enabled: true
  token: "${VISTLY_TEST_PRESET}"
providers:
  omdb:
    api_key: "${VISTLY_TEST_OMDB}"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-key", cfg.Providers.OMDb.APIKey)
	assert.Equal(t, "already-set", cfg.Telegram.Token, ".env must not override the environment")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("Load() error = %v, want reading error", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "bot.yaml", "telegram: [unclosed"))
	if err == nil || !strings.Contains(err.Error(), "parsing config file") {
		t.Errorf("Load() error = %v, want parse error", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Load(writeConfig(t, "bot.yaml", minimalYAML+"bot:\n  turn_timeout: \"soon\"\n"))
	if err == nil || !strings.Contains(err.Error(), "bot.turn_timeout") {
		t.Errorf("Load() error = %v, want turn_timeout error", err)
	}

	_, err = Load(writeConfig(t, "bot.yaml", minimalYAML+"bot:\n  dedupe_ttl: \"-1m\"\n"))
	assert.ErrorContains(t, err, "negative")
}

func validConfig() *Config {
	cfg := &Config{
		Telegram:  TelegramConfig{Enabled: true, Token: "t"},
		Providers: ProvidersConfig{OMDb: ProviderConfig{APIKey: "k"}},
	}
	cfg.applyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no frontend", func(c *Config) { c.Telegram.Enabled = false }, "at least one of telegram or matrix"},
		{"telegram without token", func(c *Config) { c.Telegram.Token = "" }, "telegram.token"},
		{"matrix without homeserver", func(c *Config) {
			c.Matrix = MatrixConfig{Enabled: true, UserID: "@a:b", AccessToken: "x"}
		}, "matrix.homeserver"},
		{"matrix without user", func(c *Config) {
			c.Matrix = MatrixConfig{Enabled: true, Homeserver: "https://h", AccessToken: "x"}
		}, "matrix.user_id"},
		{"matrix without token", func(c *Config) {
			c.Matrix = MatrixConfig{Enabled: true, Homeserver: "https://h", UserID: "@a:b"}
		}, "matrix.access_token"},
		{"no providers", func(c *Config) { c.Providers.OMDb.APIKey = "" }, "api_key is required"},
		{"negative rps", func(c *Config) { c.Providers.Kinopoisk.RPS = -1 }, "providers.kinopoisk.rps"},
		{"negative retries", func(c *Config) { c.Providers.OMDb.MaxRetries = -1 }, "providers.omdb.max_retries"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"sqlite without path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = DriverPostgres }, "database.dsn"},
		{"bad sessions", func(c *Config) { c.Bot.Sessions = "redis" }, "bot.sessions"},
		{"negative dedupe size", func(c *Config) { c.Bot.DedupeSize = -5 }, "bot.dedupe_size"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, "metrics.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("VISTLY_A", "alpha")
	assert.Equal(t, "x=alpha y=", expandEnvVars("x=${VISTLY_A} y=${VISTLY_UNSET_VAR}"))
	assert.Equal(t, "$VISTLY_A", expandEnvVars("$VISTLY_A"), "bare $VAR is left alone")
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, "/etc/bot.yaml", ResolvePath("/etc/bot.yaml"))

	t.Setenv("VISTLY_CONFIG", "/from/env.yaml")
	assert.Equal(t, "/from/env.yaml", ResolvePath(""))

	t.Setenv("VISTLY_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "vistly", "bot.yaml"), ResolvePath(""))

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "vistly", "bot.yaml"), ResolvePath(""))
}

func TestExampleLoads(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "t")
	t.Setenv("OMDB_API_KEY", "k")
	_, err := Load(writeConfig(t, "bot.yaml", Example))
	assert.NoError(t, err)
}
