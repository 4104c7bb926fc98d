package vps

import (
	"log/slog"
	"path/filepath"

	"github.com/vango-dev/vps/internal/config"
	"github.com/vango-dev/vps/pkg/assets"
	"github.com/vango-dev/vps/pkg/loader"
	"github.com/vango-dev/vps/pkg/prerender"
	"github.com/vango-dev/vps/pkg/registry"
	"github.com/vango-dev/vps/pkg/render"
	"github.com/vango-dev/vps/pkg/server"
)

// Config is the runtime configuration of an App. It is read once by New.
type Config struct {
	// Registry is the page manifest. When nil it is built from Files.
	Registry *registry.Registry

	// Files lists the page files, with forward slashes and a leading "/".
	Files []string

	// Importer returns the exports of a page file. Required.
	Importer loader.Importer

	// Assets resolves client entry scripts. Defaults to serving them
	// under "/".
	Assets assets.Resolver

	// Middleware wraps every render, outermost first.
	Middleware []render.Middleware

	// Prerender configures Prerender.
	Prerender prerender.Options

	// Server configures Handler. Nil uses server.DefaultConfig.
	Server *server.Config

	// Logger is the structured logger for the application.
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// ConfigFromProject builds a Config from a project configuration file.
// The registry is built from files, or from a single scan of the pages
// directory when files is empty. The asset manifest is loaded when one is
// configured. The Importer is left for the caller to set.
func ConfigFromProject(pc *config.Config, files []string) (Config, error) {
	if err := pc.Validate(); err != nil {
		return Config{}, err
	}

	var (
		reg *registry.Registry
		err error
	)
	if len(files) > 0 {
		reg, err = registry.New(files)
	} else {
		reg, err = registry.Scan(pc.PagesPath(), registry.ScanOptions{})
	}
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Registry: reg,
		Prerender: prerender.Options{
			Partial:     pc.Prerender.Partial,
			Root:        pc.Dir(),
			OutDir:      pc.OutDirPath(),
			Concurrency: pc.Prerender.Concurrency,
		},
		Server: server.DefaultConfig().WithAddress(pc.Address()),
	}
	if pc.Server.Metrics {
		cfg.Server.WithMetrics("/metrics")
	}

	if path := pc.ManifestPath(); path != "" {
		m, err := assets.Load(path)
		if err != nil {
			return Config{}, err
		}
		cfg.Assets = assets.NewResolver(m, pc.AssetPrefix)
		cfg.Server.WithAssets(filepath.Dir(path), pc.AssetPrefix)
	} else {
		cfg.Assets = assets.NewPassthroughResolver(pc.AssetPrefix)
	}
	return cfg, nil
}
