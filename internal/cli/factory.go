package cli

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/diagramflow"
	"github.com/aretw0/diagramflow/internal/config"
	"github.com/aretw0/diagramflow/internal/logging"
	"github.com/aretw0/diagramflow/pkg/adapters/bolt"
	"github.com/aretw0/diagramflow/pkg/adapters/file"
	"github.com/aretw0/diagramflow/pkg/adapters/memory"
	"github.com/aretw0/diagramflow/pkg/adapters/process"
	"github.com/aretw0/diagramflow/pkg/adapters/redis"
	"github.com/aretw0/diagramflow/pkg/adapters/vector"
	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/aretw0/diagramflow/pkg/observability"
	"github.com/aretw0/diagramflow/pkg/persistence/middleware"
	"github.com/aretw0/diagramflow/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Deps are the collaborators a command can override, mostly for tests.
type Deps struct {
	Logger *slog.Logger
	// Registerer receives the studio metrics; nil disables them.
	Registerer prometheus.Registerer
	Renderer   ports.Renderer
	Rasterizer ports.Rasterizer
	Store      ports.KVStore
	// Hooks are merged after the logging and metrics hooks.
	Hooks domain.LifecycleHooks
}

// App is a configured studio and the resources it owns.
type App struct {
	Studio *diagramflow.Studio
	Config config.Config
	Logger *slog.Logger

	closers []io.Closer
}

// Close shuts the studio down and releases the store.
func (a *App) Close() error {
	errs := []error{a.Studio.Close()}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

// createLogger configures the application logger from the log section.
// Logs go to Stderr so Stdout stays clean for diagrams and JSON-RPC.
func createLogger(c config.LogConfig) (*slog.Logger, error) {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewWithOptions(logging.Options{Level: level, Format: c.Format}), nil
}

// createStore opens the configured backend, wrapped with encryption when a key is set.
func createStore(c config.StoreConfig) (ports.KVStore, io.Closer, error) {
	var (
		store  ports.KVStore
		closer io.Closer
	)
	switch c.Driver {
	case config.DriverMemory:
		store = memory.NewStore()
	case config.DriverFile:
		store = file.New(c.Path)
	case config.DriverBolt:
		path := c.Path
		if path == "" || path == config.Default().Store.Path {
			path = ".diagramflow/store.db"
		}
		db, err := bolt.Open(path)
		if err != nil {
			return nil, nil, err
		}
		store, closer = db, db
	case config.DriverRedis:
		var opts []redis.Option
		if c.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(c.Redis.Prefix))
		}
		if c.Redis.TTL > 0 {
			opts = append(opts, redis.WithTTL(c.Redis.TTL))
		}
		rs := redis.New(c.Redis.Addr, c.Redis.Password, c.Redis.DB, opts...)
		store, closer = rs, rs
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", c.Driver)
	}

	if c.EncryptionKey == "" {
		return store, closer, nil
	}
	key, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
	if err != nil || len(key) != 32 {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, nil, errors.New("store encryption_key must be 32 base64-encoded bytes")
	}
	return middleware.Chain(store, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})), closer, nil
}

// createEngines builds the process renderer and the per-format rasterizer from the tool registry.
func createEngines(toolsPath string) (ports.Renderer, ports.Rasterizer, error) {
	custom, err := process.LoadTools(toolsPath)
	if err != nil {
		return nil, nil, err
	}
	runner := process.NewRunner(process.WithRegistry(process.MergeTools(process.DefaultTools(), custom)))

	raster := process.ByFormat{
		domain.FormatRaster: process.NewRasterizer(runner, process.ToolRasterizePNG, ""),
		domain.FormatVector: vector.New(),
	}
	if runner.Has(process.ToolRasterizeSVG) {
		raster[domain.FormatVector] = process.NewRasterizer(runner, process.ToolRasterizeSVG, "")
	}
	return process.NewRenderer(runner, ""), raster, nil
}

// NewApp loads the studio described by cfg.
func NewApp(cfg config.Config, deps Deps) (*App, error) {
	app := &App{Config: cfg, Logger: deps.Logger}
	if app.Logger == nil {
		logger, err := createLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
		app.Logger = logger
	}

	store := deps.Store
	if store == nil {
		s, closer, err := createStore(cfg.Store)
		if err != nil {
			return nil, err
		}
		store = s
		if closer != nil {
			app.closers = append(app.closers, closer)
		}
	}

	renderer, rasterizer := deps.Renderer, deps.Rasterizer
	if renderer == nil || rasterizer == nil {
		r, ras, err := createEngines(cfg.Tools)
		if err != nil {
			_ = app.closeResources()
			return nil, err
		}
		if renderer == nil {
			renderer = r
		}
		if rasterizer == nil {
			rasterizer = ras
		}
	}

	hooks := observability.LoggingHooks(app.Logger)
	if deps.Registerer != nil {
		metrics, err := observability.NewMetrics(deps.Registerer)
		if err != nil {
			_ = app.closeResources()
			return nil, err
		}
		hooks = hooks.Merge(metrics.Hooks())
	}
	hooks = hooks.Merge(deps.Hooks)

	theme, _ := domain.ParseTheme(cfg.Theme)
	studio, err := diagramflow.New(
		diagramflow.WithLogger(app.Logger),
		diagramflow.WithLifecycleHooks(hooks),
		diagramflow.WithStore(store),
		diagramflow.WithRenderer(renderer),
		diagramflow.WithRasterizer(rasterizer),
		diagramflow.WithSink(file.NewSink(cfg.Export.Dir)),
		diagramflow.WithDebounce(cfg.Render.Debounce),
		diagramflow.WithRenderTimeout(cfg.Render.Timeout),
		diagramflow.WithExportSize(cfg.Export.Width, cfg.Export.Height),
		diagramflow.WithExportQuality(cfg.Export.Quality),
		diagramflow.WithTheme(theme),
	)
	if err != nil {
		_ = app.closeResources()
		return nil, err
	}
	app.Studio = studio
	return app, nil
}

func (a *App) closeResources() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// ReadSource reads diagram source from path, or Stdin when path is "-".
func ReadSource(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read diagram: %w", err)
	}
	return string(data), nil
}
