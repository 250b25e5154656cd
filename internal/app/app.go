// ABOUTME: Runtime wiring for vistly-bot: store, providers, engine, frontends and ops HTTP server
// ABOUTME: Owns startup order, the Telegram poller lock and graceful shutdown

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vistly/vistly-bot/internal/bot"
	"github.com/vistly/vistly-bot/internal/config"
	"github.com/vistly/vistly-bot/internal/dedupe"
	"github.com/vistly/vistly-bot/internal/i18n"
	"github.com/vistly/vistly-bot/internal/matrix"
	"github.com/vistly/vistly-bot/internal/metrics"
	"github.com/vistly/vistly-bot/internal/provider"
	"github.com/vistly/vistly-bot/internal/provider/kinopoisk"
	"github.com/vistly/vistly-bot/internal/provider/omdb"
	"github.com/vistly/vistly-bot/internal/render"
	"github.com/vistly/vistly-bot/internal/store"
	"github.com/vistly/vistly-bot/internal/telegram"
)

// shutdownTimeout bounds the HTTP server drain on shutdown
const shutdownTimeout = 5 * time.Second

// Runner is a chat frontend
type Runner interface {
	Run(ctx context.Context) error
}

// App is the assembled bot
type App struct {
	config    *config.Config
	base      *slog.Logger
	logger    *slog.Logger
	renderer  *render.Renderer
	store     store.Store
	engine    *bot.Engine
	dedupe    *dedupe.Window
	registry  *prometheus.Registry
	server    *http.Server
	startedAt time.Time

	mu        sync.Mutex
	frontends []string
	lock      *flock.Flock
	crypto    *matrix.Crypto
}

// New builds the app from cfg without touching the network
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(registry)

	providers, err := BuildProviders(cfg.Providers, recorder)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	catalog, err := i18n.Load()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("loading locales: %w", err)
	}

	var sessions bot.SessionStore = bot.NewMemorySessions()
	if cfg.Bot.Sessions == config.SessionsStore {
		sessions = bot.NewStoreSessions(s, logger)
	}

	renderer := render.NewRenderer(catalog, cfg.Telegram.BotUsername)
	window := dedupe.New(cfg.Bot.DedupeTTL, cfg.Bot.DedupeSize, dedupe.DefaultSweepInterval)
	engine, err := bot.New(bot.Config{
		Store:       s,
		Providers:   providers,
		Sessions:    sessions,
		Renderer:    renderer,
		Dedupe:      window,
		Metrics:     recorder,
		TurnTimeout: cfg.Bot.TurnTimeout,
		Logger:      logger,
	})
	if err != nil {
		window.Close()
		_ = s.Close()
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	a := &App{
		config:    cfg,
		base:      logger,
		logger:    logger.With("component", "app"),
		renderer:  renderer,
		store:     s,
		engine:    engine,
		dedupe:    window,
		registry:  registry,
		startedAt: time.Now(),
	}
	a.server = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           a.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// OpenStore opens the configured store backend
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		s, err := store.NewPostgresStore(ctx, cfg.DSN, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return s, nil
	case config.DriverSQLite, "":
		if dir := filepath.Dir(cfg.Path); cfg.Path != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		s, err := store.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// BuildProviders creates a client for every provider with an API key
func BuildProviders(cfg config.ProvidersConfig, observer provider.RequestObserver) (provider.Set, error) {
	set := provider.Set{}
	transport := func(kind provider.Kind, pc config.ProviderConfig) *provider.Transport {
		return provider.NewTransport(kind, pc.Timeout, pc.RPS, pc.MaxRetries, provider.WithObserver(observer))
	}

	if pc := cfg.Kinopoisk; pc.Enabled() {
		c, err := kinopoisk.New(pc.APIKey, pc.BaseURL, transport(provider.Kinopoisk, pc))
		if err != nil {
			return nil, fmt.Errorf("creating kinopoisk client: %w", err)
		}
		set[provider.Kinopoisk] = c
	}
	if pc := cfg.OMDb; pc.Enabled() {
		c, err := omdb.New(pc.APIKey, pc.BaseURL, transport(provider.OMDb, pc))
		if err != nil {
			return nil, fmt.Errorf("creating omdb client: %w", err)
		}
		set[provider.OMDb] = c
	}
	return set, nil
}

// Engine returns the turn engine
func (a *App) Engine() *bot.Engine { return a.engine }

// Store returns the opened store
func (a *App) Store() store.Store { return a.store }

// Run connects the frontends and serves until ctx is cancelled or a
// component fails.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.config.HTTP.Addr)
	if err != nil {
		a.close()
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runners, err := a.connect(runCtx)
	if err != nil {
		_ = ln.Close()
		a.close()
		return err
	}

	errCh := make(chan error, len(runners)+1)
	var wg sync.WaitGroup

	go func() {
		a.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()
	for name, r := range runners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Run(runCtx); err != nil {
				errCh <- fmt.Errorf("%s frontend: %w", name, err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("context canceled, initiating shutdown")
	case runErr = <-errCh:
		a.logger.Error("component failed", "error", runErr)
	}

	cancel()
	wg.Wait()
	return errors.Join(runErr, a.shutdown())
}

// connect builds the enabled frontends. Network handshakes happen here so
// New stays offline.
func (a *App) connect(ctx context.Context) (map[string]Runner, error) {
	runners := map[string]Runner{}

	if tc := a.config.Telegram; tc.Enabled {
		lock := flock.New(LockPath(tc))
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquiring telegram lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("another vistly-bot is polling this token (lock %s)", lock.Path())
		}
		a.mu.Lock()
		a.lock = lock
		a.mu.Unlock()

		api, err := telegram.Dial(tc.Token, tc.PollTimeout)
		if err != nil {
			return nil, err
		}
		username := tc.BotUsername
		if username == "" {
			username = api.Self.UserName
			a.renderer.BotUsername = username
		}
		a.logger.Info("connected to telegram", "bot", api.Self.UserName)
		runners[telegram.FrontendName] = telegram.New(api, a.engine, telegram.Options{
			BotUsername: username,
			PollTimeout: tc.PollTimeout,
			Logger:      a.base,
		})
	}

	if mc := a.config.Matrix; mc.Enabled {
		client, err := matrix.NewClient(mc.Homeserver, mc.UserID, mc.AccessToken)
		if err != nil {
			return nil, err
		}
		if mc.E2EE() {
			c, err := matrix.SetupCrypto(ctx, client, mc.RecoveryKey, mc.DataDir, a.base)
			if err != nil {
				return nil, fmt.Errorf("setting up matrix encryption: %w", err)
			}
			a.mu.Lock()
			a.crypto = c
			a.mu.Unlock()
		}
		runners[matrix.FrontendName] = matrix.New(client, a.engine, matrix.Options{
			AllowedRooms: mc.AllowedRooms,
			Posters:      matrix.NewPosterFetcher(matrix.DefaultPosterTimeout),
			Logger:       a.base,
		})
	}

	a.mu.Lock()
	for name := range runners {
		a.frontends = append(a.frontends, name)
	}
	a.mu.Unlock()
	return runners, nil
}

// LockPath is the Telegram poller lock file. Without an explicit path it
// is keyed by the bot id, the non-secret part of the token.
func LockPath(tc config.TelegramConfig) string {
	if tc.LockFile != "" {
		return tc.LockFile
	}
	botID, _, _ := strings.Cut(tc.Token, ":")
	return filepath.Join(os.TempDir(), "vistly-bot-"+botID+".lock")
}

// appendCloseError appends an error with label if err is non-nil
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.logger.Info("shutting down")
	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", a.server.Shutdown(ctx))
	errs = append(errs, a.close())
	return errors.Join(errs...)
}

// close releases everything but the HTTP server
func (a *App) close() error {
	var errs []error
	a.mu.Lock()
	if a.crypto != nil {
		errs = appendCloseError(errs, "matrix crypto close", a.crypto.Close())
	}
	if a.lock != nil {
		errs = appendCloseError(errs, "telegram lock release", a.lock.Unlock())
	}
	a.mu.Unlock()

	a.dedupe.Close()
	errs = appendCloseError(errs, "store close", a.store.Close())
	return errors.Join(errs...)
}
