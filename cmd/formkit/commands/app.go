package commands

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/goliatone/go-formkit/internal/config"
	"github.com/goliatone/go-formkit/internal/logging"
	"github.com/goliatone/go-formkit/internal/metrics"
	"github.com/goliatone/go-formkit/internal/store/sqlite"
	"github.com/goliatone/go-formkit/pkg/detail"
	"github.com/goliatone/go-formkit/pkg/engine"
	"github.com/goliatone/go-formkit/pkg/registry"
)

// app is the wired runtime shared by the subcommands.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	store   *sqlite.Store
	metrics *metrics.Metrics
	engine  *engine.Engine
	closers []io.Closer
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.registryDir != "" {
		cfg.Registry.Dir = flags.registryDir
	}
	if flags.databasePath != "" {
		cfg.Database.Path = flags.databasePath
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	return cfg, nil
}

// openApp loads the registry, opens the store and builds the engine. The
// caller must close the app.
func openApp(ctx context.Context, flags *globalFlags) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	reg, err := registry.LoadFS(os.DirFS(cfg.Registry.Dir), registry.WithLogger(logger))
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	store, err := sqlite.Open(ctx, cfg.Database.Path, sqlite.WithLogger(logger))
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store)
	a.metrics = metrics.New()

	a.engine = engine.New(reg,
		engine.WithCatalog(store),
		engine.WithEntityStore(store),
		engine.WithLogger(logger),
		engine.WithObserver(a.metrics),
		engine.WithConcurrency(cfg.Options.Concurrency),
		engine.WithPipeline(newPipeline(cfg, logger)),
	)
	logger.Debug().
		Str("registry", cfg.Registry.Dir).
		Str("database", cfg.Database.Path).
		Int("forms", len(reg.Forms())).
		Msg("formkit ready")
	return a, nil
}

func newPipeline(cfg *config.Config, logger zerolog.Logger) *detail.Pipeline {
	opts := []detail.Option{
		detail.WithLocale(cfg.Locale()),
		detail.WithCurrency(cfg.Display.Currency),
		detail.WithLogger(logger),
	}
	if cfg.Display.Sanitize {
		opts = append(opts, detail.WithSanitizer(bluemonday.StrictPolicy()))
	}
	return detail.New(opts...)
}

// Close releases the store and the log output, last opened first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if a.closers[i] == nil {
			continue
		}
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
