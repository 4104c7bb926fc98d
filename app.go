package vps

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vango-dev/vps/pkg/loader"
	"github.com/vango-dev/vps/pkg/output"
	"github.com/vango-dev/vps/pkg/prerender"
	"github.com/vango-dev/vps/pkg/registry"
	"github.com/vango-dev/vps/pkg/render"
	"github.com/vango-dev/vps/pkg/server"
)

// App is the entry point of a site. It is safe for concurrent use.
type App struct {
	registry *registry.Registry
	loader   *loader.Loader
	pipeline *render.Pipeline
	server   *server.Server
	config   Config
	logger   *slog.Logger
}

// New creates an App.
func New(cfg Config) (*App, error) {
	if cfg.Importer == nil {
		return nil, fmt.Errorf("vps: Config.Importer is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reg := cfg.Registry
	if reg == nil {
		var err error
		reg, err = registry.New(cfg.Files)
		if err != nil {
			return nil, err
		}
	}

	ld := loader.New(reg, cfg.Importer, loader.WithLogger(logger))
	p := render.New(render.Config{
		Loader:     ld,
		Assets:     cfg.Assets,
		Middleware: cfg.Middleware,
		Logger:     logger,
	})

	if cfg.Prerender.Logger == nil {
		cfg.Prerender.Logger = logger
	}

	return &App{
		registry: reg,
		loader:   ld,
		pipeline: p,
		server:   server.New(p, cfg.Server, server.WithLogger(logger)),
		config:   cfg,
		logger:   logger,
	}, nil
}

// Render renders the page at url. initial is merged into the page
// context before route parameters and hook contributions.
func (a *App) Render(ctx context.Context, url string, initial map[string]any) (*render.Outcome, error) {
	return a.pipeline.Render(ctx, url, initial)
}

// ClientContext returns the serialized client context of the page at url.
func (a *App) ClientContext(ctx context.Context, url string, initial map[string]any) (string, error) {
	return a.pipeline.ClientContext(ctx, url, initial)
}

// Prerender renders every page to sink. A nil sink writes to
// Config.Prerender.OutDir.
func (a *App) Prerender(ctx context.Context, sink output.Sink) (*prerender.Report, error) {
	return prerender.Run(ctx, a.pipeline, sink, a.config.Prerender)
}

// Handler returns an http.Handler serving the site.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.server.ServeHTTP(w, r)
}

// Run serves the site until ctx is done.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Route describes the route of one page.
type Route struct {
	PageID registry.PageID
	Kind   string
	Route  string
	File   string
}

// Routes lists the route of every page but the error page, in registry
// order.
func (a *App) Routes(ctx context.Context) ([]Route, error) {
	var routes []Route
	for _, id := range a.pipeline.Routable() {
		def, err := a.loader.RouteDefinition(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("page %s: %w", id, err)
		}
		routes = append(routes, Route{
			PageID: id,
			Kind:   def.Kind.String(),
			Route:  def.String(),
			File:   def.File,
		})
	}
	return routes, nil
}

// Pipeline returns the render pipeline.
func (a *App) Pipeline() *render.Pipeline { return a.pipeline }

// Registry returns the page registry.
func (a *App) Registry() *registry.Registry { return a.registry }

// Loader returns the page module loader.
func (a *App) Loader() *loader.Loader { return a.loader }

// Server returns the HTTP server.
func (a *App) Server() *server.Server { return a.server }

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }
