// ABOUTME: Entry point for the vistly-bot watch-list bot
// ABOUTME: Dispatches the serve, init, health, ready and version subcommands

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/vistly/vistly-bot/internal/app"
	"github.com/vistly/vistly-bot/internal/config"
)

// Version is set at build time.
var version = "dev"

const banner = `
       _     _   _
__   _(_)___| |_| |_   _
\ \ / / / __| __| | | | |
 \ V /| \__ \ |_| | |_| |
  \_/ |_|___/\__|_|\__, |
                   |___/
`

func usage() {
	fmt.Println("Usage: vistly-bot <command> [config]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve      Start the bot and its ops server")
	fmt.Println("  init       Create a new config file interactively")
	fmt.Println("  health     Check bot liveness")
	fmt.Println("  ready      Print bot readiness")
	fmt.Println("  version    Print the version")
	fmt.Println()
	fmt.Println("The config path defaults to $VISTLY_CONFIG, then ~/.config/vistly/bot.yaml")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	explicit := ""
	if len(os.Args) > 2 {
		explicit = os.Args[2]
	}
	configPath := config.ResolvePath(explicit)

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, configPath)
	case "init":
		err = runInit(bufio.NewReader(os.Stdin), os.Stdout, configPath)
	case "health":
		err = runHealth(ctx, configPath)
	case "ready":
		err = runReady(ctx, configPath)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context, configPath string) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.HTTP.Addr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Driver)
	if cfg.Telegram.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Telegram:  ")
		cyan.Println("long poll")
	}
	if cfg.Matrix.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Matrix:    ")
		cyan.Print(cfg.Matrix.UserID)
		if cfg.Matrix.E2EE() {
			yellow.Print(" [e2ee]")
		}
		fmt.Println()
	}
	for name, p := range map[string]config.ProviderConfig{"kinopoisk": cfg.Providers.Kinopoisk, "omdb": cfg.Providers.OMDb} {
		if !p.Enabled() {
			green.Print("    ▶ ")
			fmt.Printf("Provider:  %s ", name)
			gray.Println("(disabled)")
		}
	}
	fmt.Println()

	logger.Info("starting vistly-bot",
		"config", configPath,
		"http_addr", cfg.HTTP.Addr,
		"telegram", cfg.Telegram.Enabled,
		"matrix", cfg.Matrix.Enabled,
	)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating app: %w", err)
	}
	return a.Run(ctx)
}

// getURL fetches an ops endpoint of the running bot and returns its body
func getURL(ctx context.Context, configPath, path string) (int, []byte, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return 0, nil, fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s%s", cfg.HTTP.Addr, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func runHealth(ctx context.Context, configPath string) error {
	status, _, err := getURL(ctx, configPath, "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", status)
	}
	fmt.Println("healthy")
	return nil
}

func runReady(ctx context.Context, configPath string) error {
	status, body, err := getURL(ctx, configPath, "/health/ready")
	if err != nil {
		return fmt.Errorf("ready check failed: %w", err)
	}
	fmt.Println(string(body))
	if status != http.StatusOK {
		return fmt.Errorf("not ready: status %d", status)
	}
	return nil
}

// initAnswers are the values collected by runInit
type initAnswers struct {
	DatabasePath string
	HTTPAddr     string
	LogLevel     string
	LogFormat    string
}

// renderConfig fills the example config with the collected answers
func renderConfig(a initAnswers) string {
	out := config.Example
	out = strings.Replace(out, `path: "`+config.DefaultDatabasePath+`"`, fmt.Sprintf("path: %q", a.DatabasePath), 1)
	out = strings.Replace(out, `addr: "`+config.DefaultHTTPAddr+`"`, fmt.Sprintf("addr: %q", a.HTTPAddr), 1)
	out = strings.Replace(out, `level: "info"`, fmt.Sprintf("level: %q", a.LogLevel), 1)
	out = strings.Replace(out, `format: "text"`, fmt.Sprintf("format: %q", a.LogFormat), 1)
	return out
}

func runInit(reader *bufio.Reader, out io.Writer, defaultConfigPath string) error {
	fmt.Fprintln(out, "vistly-bot configuration setup")
	fmt.Fprintln(out, "==============================")
	fmt.Fprintln(out)

	outputFile := prompt(reader, out, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := strings.ToLower(prompt(reader, out, "File exists. Overwrite?", "no"))
		if overwrite != "yes" && overwrite != "y" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	defaultDB := filepath.Join(filepath.Dir(outputFile), config.DefaultDatabasePath)

	fmt.Fprintln(out, "\n--- Storage ---")
	answers := initAnswers{
		DatabasePath: prompt(reader, out, "SQLite database path", defaultDB),
	}
	fmt.Fprintln(out, "\n--- Ops Server ---")
	answers.HTTPAddr = prompt(reader, out, "HTTP address", config.DefaultHTTPAddr)
	fmt.Fprintln(out, "\n--- Logging ---")
	answers.LogLevel = prompt(reader, out, "Log level (debug/info/warn/error)", "info")
	answers.LogFormat = prompt(reader, out, "Log format (text/json)", "text")

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(renderConfig(answers)), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintln(out, "\nSet TELEGRAM_BOT_TOKEN and OMDB_API_KEY or KINOPOISK_API_KEY")
	fmt.Fprintln(out, "in the environment or a .env file next to the config, then run:")
	fmt.Fprintln(out, "  vistly-bot serve")
	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
