// ABOUTME: Tests for the vistly-bot command helpers
// ABOUTME: Covers logger selection, the color handler and the init config writer

package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistly/vistly-bot/internal/config"
)

func withoutColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	logger.Debug("hidden")
	logger.Info("hello", "user", 7)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"hello"`)
	assert.Contains(t, out, `"user":7`)
}

func TestSetupLoggerPlainTextWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)
	logger.Debug("hello")

	assert.Contains(t, buf.String(), "level=DEBUG msg=hello")
}

func TestColorHandler(t *testing.T) {
	withoutColor(t)

	var buf bytes.Buffer
	h := &colorHandler{out: &buf, mu: &sync.Mutex{}, level: slog.LevelInfo}
	logger := slog.New(h).With("component", "bot").WithGroup("turn")

	logger.Debug("filtered")
	logger.Info("done", "outcome", "ok", "err", errors.New("boom"))
	logger.Error("failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "INF done component=bot turn.outcome=ok turn.err=boom"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "ERR failed component=bot"), lines[1])
}

func TestColorHandlerEnabled(t *testing.T) {
	h := &colorHandler{out: io.Discard, mu: &sync.Mutex{}, level: slog.LevelWarn}
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
	assert.Same(t, h, h.WithGroup(""))
}

func TestRenderConfigLoads(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("OMDB_API_KEY", "omdb-key")
	t.Setenv("KINOPOISK_API_KEY", "")

	path := filepath.Join(t.TempDir(), "bot.yaml")
	body := renderConfig(initAnswers{
		DatabasePath: "/var/lib/vistly/bot.db",
		HTTPAddr:     "0.0.0.0:9000",
		LogLevel:     "debug",
		LogFormat:    "json",
	})
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/vistly/bot.db", cfg.Database.Path)
	assert.Equal(t, "0.0.0.0:9000", cfg.HTTP.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.True(t, cfg.Providers.OMDb.Enabled())
	assert.False(t, cfg.Providers.Kinopoisk.Enabled())
}

func TestRunInitWritesConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "bot.yaml")

	input := strings.Join([]string{path, "", "127.0.0.1:9999", "", "json"}, "\n") + "\n"
	var out bytes.Buffer
	require.NoError(t, runInit(bufio.NewReader(strings.NewReader(input)), &out, "ignored.yaml"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(data)
	assert.Contains(t, body, `addr: "127.0.0.1:9999"`)
	assert.Contains(t, body, `format: "json"`)
	assert.Contains(t, body, `level: "info"`)
	assert.Contains(t, body, filepath.Join(dir, "nested", config.DefaultDatabasePath))
	assert.Contains(t, out.String(), "Config written to "+path)
}

func TestRunInitKeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mine"), 0600))

	var out bytes.Buffer
	require.NoError(t, runInit(bufio.NewReader(strings.NewReader("\nno\n")), &out, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mine", string(data))
	assert.Contains(t, out.String(), "Aborted.")
}

func TestPromptDefaultsOnEOF(t *testing.T) {
	var out bytes.Buffer
	got := prompt(bufio.NewReader(strings.NewReader("")), &out, "Question", "fallback")
	assert.Equal(t, "fallback", got)
	assert.Contains(t, out.String(), "Question [fallback]: ")
}
