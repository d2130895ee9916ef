/**
 * Main Application Coordinator for MPTimer
 *
 * Features:
 * - Configuration, logging and journal initialization
 * - Tracker factory with metrics and logging hooks attached
 * - Retried journal flushes
 * - Graceful shutdown handling
 * - Signal handling (SIGINT/SIGTERM)
 *
 * Author: MPTimer Team
 * Updated: 2025-02-07
 */

package app

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"

	"github.com/VatsalSy/MPTimer/internal/config"
	"github.com/VatsalSy/MPTimer/internal/errors"
	"github.com/VatsalSy/MPTimer/internal/logger"
	"github.com/VatsalSy/MPTimer/internal/metrics"
	"github.com/VatsalSy/MPTimer/internal/state"
	"github.com/VatsalSy/MPTimer/internal/timer"
)

// App is the main application coordinator.
type App struct {
	viper         *viper.Viper
	config        *config.Config
	logger        *logger.Logger
	logCloser     io.Closer
	stateManager  *state.Manager
	registry      *prometheus.Registry
	collector     *metrics.Collector
	shutdownChan  chan struct{}
	mu            sync.RWMutex
	shutdownOnce  sync.Once
	isInitialized bool
}

// New creates a new application instance over v. A nil v uses the global
// viper instance.
func New(v *viper.Viper) (*App, error) {
	if v == nil {
		v = viper.GetViper()
	}
	return &App{
		viper:        v,
		shutdownChan: make(chan struct{}),
	}, nil
}

// Initialize loads configuration and sets up logging and metrics. The
// journal is opened lazily by State.
func (app *App) Initialize() error {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.isInitialized {
		return errors.Errorf("application already initialized")
	}

	cfg, err := config.LoadFromViper(app.viper)
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	app.config = cfg

	log, closer, err := logger.Setup(cfg.LoggerOptions())
	if err != nil {
		return errors.WrapTyped(errors.ErrorTypeConfiguration, "app.logger", err)
	}
	app.logger = log
	app.logCloser = closer
	logger.SetGlobal(log)

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.collector = metrics.NewCollector(app.registry)

	app.logger.Debug("Initializing MPTimer",
		"version", cfg.Version,
		"config", config.ConfigPath(app.viper),
		"period", cfg.Timing.Period,
		"poll_interval", cfg.Timing.PollInterval,
	)

	app.isInitialized = true
	return nil
}

// Config returns the loaded configuration.
func (app *App) Config() *config.Config {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.config
}

// Logger returns the application logger.
func (app *App) Logger() *logger.Logger {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.logger
}

// Viper returns the viper instance the configuration was loaded from.
func (app *App) Viper() *viper.Viper {
	return app.viper
}

// Registry returns the metrics registry the tracker collector reports to.
func (app *App) Registry() *prometheus.Registry {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.registry
}

// Collector returns the tracker metrics collector.
func (app *App) Collector() *metrics.Collector {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.collector
}

// State opens the session journal on first use.
func (app *App) State() (*state.Manager, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	if !app.isInitialized {
		return nil, errors.Errorf("application not initialized")
	}
	if app.stateManager != nil {
		return app.stateManager, nil
	}

	dbConfig := state.DefaultConfig()
	dbConfig.Path = app.config.Store.Path

	manager, err := state.NewManager(dbConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize state manager")
	}
	app.stateManager = manager

	app.logger.Debug("Journal opened", "path", dbConfig.Path)
	return manager, nil
}

// TrackerOptions returns the configured tracker options with the
// application's metrics collector and logger attached.
func (app *App) TrackerOptions() (timer.Options, error) {
	app.mu.RLock()
	defer app.mu.RUnlock()

	if !app.isInitialized {
		return timer.Options{}, errors.Errorf("application not initialized")
	}

	opts := app.config.TrackerOptions()
	opts.Observer = app.collector
	opts.Logger = app.logger.WithField("component", "tracker")
	return opts, nil
}

// NewRecorder creates a recorder for an open session using the configured
// batch size.
func (app *App) NewRecorder(sessionID string) (*state.Recorder, error) {
	manager, err := app.State()
	if err != nil {
		return nil, err
	}
	return manager.NewRecorder(sessionID, app.config.Store.BatchSize), nil
}

// Flush writes a recorder's buffer, retrying transient storage failures.
func (app *App) Flush(ctx context.Context, rec *state.Recorder) error {
	attempt := 0
	err := errors.RetryOperation(ctx, func() error {
		attempt++
		err := rec.Flush(ctx)
		if err != nil && errors.IsTemporary(err) {
			app.logger.Warn("Journal flush failed, retrying",
				"session", rec.SessionID(),
				"attempt", attempt,
				"error", err.Error(),
			)
		}
		return err
	}, errors.DefaultBackoffConfig, errors.IsTemporary)
	if err != nil {
		return errors.WrapWithContext(ctx, err, "journal.flush", rec.SessionID())
	}
	return nil
}

// Context returns a context cancelled by SIGINT/SIGTERM or Stop.
func (app *App) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go app.handleSignals(ctx, cancel)
	return ctx, cancel
}

// Stop stops the application gracefully.
func (app *App) Stop() error {
	app.shutdownOnce.Do(func() {
		close(app.shutdownChan)

		app.mu.Lock()
		defer app.mu.Unlock()

		if app.stateManager != nil {
			if err := app.stateManager.Close(); err != nil && app.logger != nil {
				app.logger.Error(err, "Failed to close state manager")
			}
			app.stateManager = nil
		}

		if app.logger != nil {
			app.logger.Debug("MPTimer shutdown complete")
		}
		if app.logCloser != nil {
			app.logCloser.Close()
		}
	})

	return nil
}

func (app *App) handleSignals(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	app.setupSignalHandling(sigChan)
	defer app.stopSignalHandling(sigChan)

	select {
	case sig := <-sigChan:
		if log := app.Logger(); log != nil {
			log.Info("Received signal", "signal", sig.String())
		}
		cancel()
	case <-app.shutdownChan:
		cancel()
	case <-ctx.Done():
	}
}
