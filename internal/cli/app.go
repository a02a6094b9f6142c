package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/pixelarts/internal/canvasd"
	"github.com/roach88/pixelarts/internal/colorname"
	"github.com/roach88/pixelarts/internal/config"
	"github.com/roach88/pixelarts/internal/decor"
	"github.com/roach88/pixelarts/internal/palette"
	"github.com/roach88/pixelarts/internal/render"
	"github.com/roach88/pixelarts/internal/rescache"
	"github.com/roach88/pixelarts/internal/store"
	"github.com/roach88/pixelarts/internal/telemetry"
)

// app is the wired process state shared by one command invocation.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	registry *prometheus.Registry
	store    *store.Store
	palette  *palette.Palette
	renderer *render.Renderer
	ids      canvasd.IDGenerator

	// Created on first use by decorated; they start background workers.
	swatches *decor.Swatches
	names    *colorname.Resolver

	svc    *canvasd.Service
	ctx    context.Context
	cancel context.CancelFunc
}

// loadConfig merges config file, environment and flags.
func (o *RootOptions) loadConfig() (config.Config, error) {
	l := config.NewLoader(config.WithConfigFile(o.ConfigFile))
	if o.DataDir != "" {
		l.Set("data_dir", o.DataDir)
	}
	if o.Database != "" {
		l.Set("database", o.Database)
	}
	return l.Load()
}

func newLogger(w io.Writer, level string, verbose bool) (*slog.Logger, error) {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// openApp loads configuration and opens the store. The returned app must
// be closed.
func openApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log.Level, opts.Verbose)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to configure logging", err)
	}

	pal := palette.Default()
	if cfg.Palette != "" {
		if pal, err = palette.LoadFile(cfg.Palette); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load palette", err)
		}
	}

	if cfg.Database != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create data directory", err)
		}
	}

	registry := prometheus.NewRegistry()
	metrics := telemetry.New(registry)

	storeOpts := []store.Option{store.WithMetrics(metrics)}
	if opts.Now != nil {
		storeOpts = append(storeOpts, store.WithClock(opts.Now))
	}
	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database, storeOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	encoder := opts.Encoder
	if encoder == nil {
		encoder = render.FFmpeg{
			Path:   cfg.Render.FFmpeg,
			FPS:    cfg.Render.FPS,
			CRF:    cfg.Render.CRF,
			Preset: cfg.Render.Preset,
			Logger: logger,
		}
	}
	renderer := render.NewRenderer(st, encoder, cfg.PreviewDir,
		render.WithLogger(logger),
		render.WithMetrics(metrics),
	)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		registry: registry,
		store:    st,
		palette:  pal,
		renderer: renderer,
		ids:      opts.IDs,
		ctx:      ctx,
		cancel:   cancel,
	}
	a.svc = a.newService()
	return a, nil
}

func (a *app) newService() *canvasd.Service {
	return canvasd.New(canvasd.Deps{
		Store:    a.store,
		Renderer: a.renderer,
		Swatches: swatcherOrNil(a.swatches),
		Names:    namerOrNil(a.names),
		Palette:  a.palette,
		IDs:      a.ids,
		Domain:   a.cfg.DomainURL,
		Logger:   a.logger,
	})
}

// decorated starts the swatch and colour-name caches and rebuilds the
// service around them.
func (a *app) decorated() error {
	if a.swatches != nil {
		return nil
	}
	api, err := decor.NewDirAPI(a.cfg.AssetDir)
	if err != nil {
		return err
	}
	cacheOpts := []rescache.Option{
		rescache.WithCapacity(a.cfg.Cache.Capacity),
		rescache.WithCreateDelay(a.cfg.Cache.CreateDelay),
		rescache.WithMetrics(a.metrics),
	}
	swatches, err := decor.New(api, a.logger, cacheOpts...)
	if err != nil {
		return fmt.Errorf("swatch cache: %w", err)
	}
	if _, err := swatches.Preload(a.ctx); err != nil {
		return err
	}
	names, err := colorname.New(colorname.Options{
		BaseURL: a.cfg.ColorAPI.BaseURL,
		Timeout: a.cfg.ColorAPI.Timeout,
		Logger:  a.logger,
	}, rescache.WithCapacity(a.cfg.Cache.Capacity), rescache.WithMetrics(a.metrics))
	if err != nil {
		return fmt.Errorf("colour name cache: %w", err)
	}

	swatches.Start(a.ctx)
	names.Start(a.ctx)
	a.swatches = swatches
	a.names = names
	a.svc = a.newService()
	return nil
}

func (a *app) Close() {
	a.cancel()
	if mfs, err := a.registry.Gather(); err == nil {
		for _, mf := range mfs {
			a.logger.Debug("metric", "name", mf.GetName(), "series", len(mf.GetMetric()))
		}
	}
	if a.swatches != nil {
		a.swatches.Close()
	}
	if a.names != nil {
		a.names.Close()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

// Nil pointers must not be stored in the service's interface fields.
func swatcherOrNil(s *decor.Swatches) canvasd.Swatcher {
	if s == nil {
		return nil
	}
	return s
}

func namerOrNil(n *colorname.Resolver) palette.Namer {
	if n == nil {
		return nil
	}
	return n
}
