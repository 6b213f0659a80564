// Package app wires all RocketReaders subsystems into a running server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP (and watches the config file when asked to)
// until its context ends, and Shutdown releases what New acquired.
//
// For testing, inject test doubles via functional options (WithStore,
// WithSTT, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/rocketreaders/internal/api"
	"github.com/MrWong99/rocketreaders/internal/assess"
	"github.com/MrWong99/rocketreaders/internal/config"
	"github.com/MrWong99/rocketreaders/internal/health"
	"github.com/MrWong99/rocketreaders/internal/observe"
	"github.com/MrWong99/rocketreaders/internal/passage"
	"github.com/MrWong99/rocketreaders/internal/resilience"
	"github.com/MrWong99/rocketreaders/pkg/provider/stt"
	"github.com/MrWong99/rocketreaders/pkg/store"
	"github.com/MrWong99/rocketreaders/pkg/store/postgres"
)

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config

	level    *slog.LevelVar
	metrics  *observe.Metrics
	stt      stt.Provider
	fallback *resilience.STTFallback
	store    store.Store
	library  *passage.Library
	service  *assess.Service
	handler  http.Handler
	scrape   http.Handler

	watchPath string
	watchOpts []config.WatcherOption
	watcher   *config.Watcher

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a session store instead of creating one from config.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithSTT injects the transcription provider. A [*resilience.STTFallback]
// also feeds the readiness check.
func WithSTT(p stt.Provider) Option {
	return func(a *App) {
		a.stt = p
		if fb, ok := p.(*resilience.STTFallback); ok {
			a.fallback = fb
		}
	}
}

// WithMetrics overrides [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h on /metrics instead of the default
// Prometheus registry.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.scrape = h }
}

// WithLevelVar lets config reloads change the level of the handler that
// owns lv.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithConfigWatch makes Run poll the config file at path and apply
// hot-reloadable changes.
func WithConfigWatch(path string, opts ...config.WatcherOption) Option {
	return func(a *App) {
		a.watchPath = path
		a.watchOpts = opts
	}
}

// New creates an App by wiring all subsystems together.
//
// New performs all initialisation synchronously: store connection and
// migration, passage loading, and HTTP routing. A config without a
// PostgreSQL DSN keeps sessions in memory.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	c := *cfg
	config.ApplyDefaults(&c)
	a := &App{cfg: &c}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.scrape == nil {
		a.scrape = observe.MetricsHandler()
	}

	if err := a.initStore(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	cfg = a.cfg
	lib, err := passage.LoadFiles(cfg.Passages.Files...)
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: load passages: %w", err)
	}
	a.library = lib
	slog.Info("passages loaded", "files", len(cfg.Passages.Files), "passages", lib.Len())

	svcOpts := []assess.Option{
		assess.WithMetrics(a.metrics),
		assess.WithMinMinutes(cfg.Scoring.MinMinutes),
		assess.WithContextRadius(cfg.Scoring.ContextRadius),
		assess.WithLanguage(cfg.Transcription.Language),
	}
	if a.stt != nil {
		svcOpts = append(svcOpts, assess.WithSTT(stt.RateLimited(a.stt, cfg.Transcription.RateLimitPerMin)))
	}
	a.service = assess.New(a.library, a.store, svcOpts...)

	mux := http.NewServeMux()
	api.New(a.service, a.library).Register(mux)
	health.New(a.checkers()...).Register(mux)
	mux.Handle("GET /metrics", a.scrape)
	a.handler = observe.Middleware(a.metrics)(mux)

	if a.watchPath != "" {
		w, err := config.NewWatcher(a.watchPath, a.Reload, a.watchOpts...)
		if err != nil {
			a.closeAll()
			return nil, fmt.Errorf("app: %w", err)
		}
		a.watcher = w
	}
	return a, nil
}

// initStore connects to PostgreSQL or falls back to memory.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	dsn := a.cfg.Storage.PostgresDSN
	if dsn == "" {
		slog.Warn("storage.postgres_dsn not set; sessions are kept in memory only")
		a.store = store.NewMemStore()
		return nil
	}

	pg, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.store = pg
	a.closers = append(a.closers, func() error {
		pg.Close()
		return nil
	})
	return nil
}

// checkers returns the readiness probes. Only the store is required:
// transcript attempts work without STT and an empty library is a
// configuration problem rather than an outage.
func (a *App) checkers() []health.Checker {
	return []health.Checker{
		{Name: "store", Check: a.store.Ping},
		{Name: "stt", Optional: true, Check: a.checkSTT},
		{Name: "passages", Optional: true, Check: func(context.Context) error {
			if a.library.Len() == 0 {
				return errors.New("no passages loaded")
			}
			return nil
		}},
	}
}

func (a *App) checkSTT(context.Context) error {
	if a.stt == nil {
		return errors.New("no stt provider configured")
	}
	if a.fallback == nil {
		return nil
	}
	for _, s := range a.fallback.States() {
		if s != resilience.StateOpen {
			return nil
		}
	}
	return errors.New("every stt backend has an open circuit")
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Service returns the assessment service.
func (a *App) Service() *assess.Service { return a.service }

// Reload applies the hot-reloadable differences between old and new: the
// log level, the passage library and the scoring settings. Other changes are
// logged and wait for a restart. A passage file that fails to load keeps the
// current library.
func (a *App) Reload(old, new *config.Config) {
	d := config.Diff(old, new)

	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.Slog())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.PassagesChanged {
		lib, err := passage.LoadFiles(new.Passages.Files...)
		if err != nil {
			slog.Error("passage reload failed; keeping current library", "err", err)
		} else {
			a.library.Replace(lib)
			slog.Info("passages reloaded", "passages", a.library.Len())
		}
	}
	if d.ScoringChanged {
		a.service.SetScoring(new.Scoring.MinMinutes, new.Scoring.ContextRadius)
		slog.Info("scoring settings changed", "min_minutes", new.Scoring.MinMinutes, "context_radius", new.Scoring.ContextRadius)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to apply", "sections", d.RestartRequired)
	}
}

// ErrNoConfigWatch is returned by [App.ReloadConfig] when New was not given
// [WithConfigWatch].
var ErrNoConfigWatch = errors.New("app: config watch not enabled")

// ReloadConfig re-reads the watched config file immediately instead of
// waiting for the next poll. It reports whether anything was applied.
func (a *App) ReloadConfig() (bool, error) {
	if a.watcher == nil {
		return false, ErrNoConfigWatch
	}
	changed, err := a.watcher.Check()
	if err != nil {
		return false, fmt.Errorf("app: reload config: %w", err)
	}
	return changed, nil
}

// Run listens on the configured address and serves until ctx is done.
func (a *App) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves HTTP on ln, plus the config watcher when one is set up, until
// ctx is done or one of them fails. In-flight requests get the configured
// shutdown timeout to finish. A clean stop returns nil.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("app: http shutdown: %w", err)
		}
		return nil
	})
	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(gctx) })
	}
	return g.Wait()
}

// Shutdown releases the store and STT resources. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		if a.watcher != nil {
			a.watcher.Stop()
		}
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// AddCloser registers fn to run during Shutdown, after the closers New
// registered itself.
func (a *App) AddCloser(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *App) closeAll() {
	for _, c := range a.closers {
		_ = c()
	}
}
