package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/kalambet/inkwell/internal/api"
	"github.com/kalambet/inkwell/internal/config"
	"github.com/kalambet/inkwell/internal/dialog"
	"github.com/kalambet/inkwell/internal/events"
	"github.com/kalambet/inkwell/internal/fileaccess"
	"github.com/kalambet/inkwell/internal/fsys"
	"github.com/kalambet/inkwell/internal/history"
	"github.com/kalambet/inkwell/internal/host"
	"github.com/kalambet/inkwell/internal/offload"
	"github.com/kalambet/inkwell/internal/settings"
	"github.com/kalambet/inkwell/internal/telemetry"
)

// app holds the components every entry point shares.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *settings.Store
	pool      *offload.Pool
	history   *history.Store // nil when history is disabled
	telemetry *telemetry.Provider
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	tp, err := telemetry.Setup(ctx, telemetry.Config{ServiceName: "inkwell", EnableTraces: cfg.Telemetry.Traces})
	if err != nil {
		return nil, fmt.Errorf("setting up telemetry: %w", err)
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		store:     settings.NewStore(settings.WithLogger(logger)),
		pool:      offload.New(int64(cfg.Worker.MaxInFlight), offload.WithLogger(logger)),
		telemetry: tp,
	}

	if cfg.History.Enabled {
		if cfg.History.DataDir == "" {
			logger.Warn("history disabled: no data directory available")
		} else {
			hist, err := history.Open(cfg.History.DataDir,
				history.WithMaxPerPath(cfg.History.MaxPerPath),
				history.WithLogger(logger),
			)
			if err != nil {
				a.Close(ctx)
				return nil, fmt.Errorf("opening history: %w", err)
			}
			a.history = hist
		}
	}
	return a, nil
}

func (a *app) tracerProvider() trace.TracerProvider {
	return a.telemetry.TracerProvider()
}

// files builds a gateway that asks picker for every selection.
func (a *app) files(picker fileaccess.Picker) *fileaccess.Gateway {
	return fileaccess.New(picker, fsys.Default, a.pool,
		fileaccess.WithLogger(a.logger),
		fileaccess.WithTracerProvider(a.tracerProvider()),
	)
}

// filesFor binds a gateway to a selection the caller already made.
func (a *app) filesFor(selection string) host.Files {
	return a.files(dialog.Select(selection))
}

func (a *app) host(files host.Files, notifier events.Notifier) *host.Host {
	opts := []host.Option{host.WithLogger(a.logger), host.WithNotifier(notifier)}
	if a.history != nil {
		opts = append(opts, host.WithRecorder(a.history))
	}
	return host.New(a.store, files, opts...)
}

// historyReader returns the history store as an interface, nil when disabled.
func (a *app) historyReader() api.HistoryReader {
	if a.history == nil {
		return nil
	}
	return a.history
}

func (a *app) Close(ctx context.Context) {
	a.pool.Close()
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("closing history", "error", err)
		}
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("shutting down telemetry", "error", err)
	}
}
