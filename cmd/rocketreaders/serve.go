package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/rocketreaders/internal/app"
	"github.com/MrWong99/rocketreaders/internal/config"
	"github.com/MrWong99/rocketreaders/internal/observe"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type serveOptions struct {
	configPath    string
	watch         bool
	watchInterval time.Duration
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reading assessment HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd.OutOrStdout(), root, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	f.BoolVar(&opts.watch, "watch", true, "reload the log level, passages and scoring when the config file changes")
	f.DurationVar(&opts.watchInterval, "watch-interval", 5*time.Second, "how often to poll the config file")
	return cmd
}

func runServe(ctx context.Context, out io.Writer, root *rootOptions, opts *serveOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %q not found; copy configs/example.yaml to get started", opts.configPath)
		}
		return err
	}
	root.applyConfigLevel(cfg.Server.LogLevel)

	slog.Info("rocketreaders starting",
		"version", version,
		"config", opts.configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	tel, err := observe.Setup(ctx,
		observe.WithServiceName(cfg.Telemetry.ServiceName),
		observe.WithServiceVersion(version),
		observe.WithSampleRatio(cfg.Telemetry.SampleRatio()),
	)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	backends, err := app.BuildSTT(cfg.Providers, reg, metrics)
	if err != nil {
		return err
	}

	appOpts := []app.Option{
		app.WithMetrics(metrics),
		app.WithMetricsHandler(tel.Handler()),
		app.WithLevelVar(root.level),
	}
	if backends.Fallback != nil {
		appOpts = append(appOpts, app.WithSTT(backends.Fallback))
	}
	if opts.watch {
		appOpts = append(appOpts, app.WithConfigWatch(opts.configPath, config.WithInterval(opts.watchInterval)))
	}

	application, err := app.New(ctx, cfg, appOpts...)
	if err != nil {
		for _, c := range backends.Closers {
			_ = c()
		}
		return err
	}
	for _, c := range backends.Closers {
		application.AddCloser(c)
	}

	printStartupSummary(out, cfg, backends)
	if opts.watch {
		stopHUP := reloadOnHangup(ctx, application)
		defer stopHUP()
	}
	slog.Info("server ready; press Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil {
		slog.Error("run error", "err", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	slog.Info("stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("shutdown: %w", err))
	}
	slog.Info("goodbye")
	return runErr
}

func printStartupSummary(out io.Writer, cfg *config.Config, backends app.STTBackends) {
	stt := "(none, transcripts only)"
	if backends.Fallback != nil {
		stt = fmt.Sprint(backends.Fallback.Backends())
	}
	storage := "memory"
	if cfg.Storage.PostgresDSN != "" {
		storage = "postgres"
	}

	fmt.Fprintln(out, "RocketReaders startup summary")
	fmt.Fprintf(out, "  STT backends  : %s\n", stt)
	fmt.Fprintf(out, "  Storage       : %s\n", storage)
	fmt.Fprintf(out, "  Passage files : %d\n", len(cfg.Passages.Files))
	fmt.Fprintf(out, "  Listen addr   : %s\n", cfg.Server.ListenAddr)
}

// reloadOnHangup re-reads the config file on every SIGHUP until ctx ends or
// the returned stop function is called.
func reloadOnHangup(ctx context.Context, application *app.App) (stop func()) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				changed, err := application.ReloadConfig()
				if err != nil {
					slog.Warn("SIGHUP reload failed", "err", err)
					continue
				}
				slog.Info("SIGHUP reload", "changed", changed)
			}
		}
	}()
	return func() {
		signal.Stop(hup)
		cancel()
	}
}
