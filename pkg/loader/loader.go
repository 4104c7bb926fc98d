package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"go.uber.org/atomic"

	"github.com/vango-dev/vps/internal/errors"
	"github.com/vango-dev/vps/pkg/registry"
	"github.com/vango-dev/vps/pkg/route"
)

// Exports are the named exports of a page file.
type Exports map[string]any

// Importer loads the exports of a page file.
type Importer func(ctx context.Context, file string) (Exports, error)

// StaticImporter serves exports from a table keyed by file path.
func StaticImporter(table map[string]Exports) Importer {
	return func(_ context.Context, file string) (Exports, error) {
		exports, ok := table[file]
		if !ok {
			return nil, fmt.Errorf("no module registered for %s", file)
		}
		return exports, nil
	}
}

// Kind selects which module of a page to load.
type Kind int

const (
	// View is the page's .page file.
	View Kind = iota
	// Route is the page's own .page.route file.
	Route
	// Server is the page's .page.server file, or the nearest default.
	Server
	// Client is the page's .page.client file, or the nearest default.
	Client
	// ServerDefault is the nearest _default.page.server file.
	ServerDefault
	// ClientDefault is the nearest _default.page.client file.
	ClientDefault
)

var kindNames = [...]string{"view", "route", "server", "client", "server default", "client default"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Module is a loaded page module.
type Module struct {
	Kind Kind
	File string

	Exports Exports

	// Absent is set when the page has no file of an optional kind.
	Absent bool
}

// Export returns a named export.
func (m Module) Export(name string) (any, bool) {
	if m.Absent {
		return nil, false
	}
	v, ok := m.Exports[name]
	return v, ok
}

type moduleKey struct {
	id   registry.PageID
	kind Kind
}

// Stats counts loader activity.
type Stats struct {
	// Imports is the number of Importer calls.
	Imports int64
	// Loads is the number of Load calls.
	Loads int64
	// Shared is the number of Load calls served by an earlier load.
	Shared int64
}

// Loader loads page modules for a registry. It is safe for concurrent use.
type Loader struct {
	registry *registry.Registry
	importer Importer
	logger   *slog.Logger

	modules *memo[moduleKey, Module]
	files   *memo[string, Exports]
	routes  *memo[registry.PageID, route.Definition]

	imports atomic.Int64
	loads   atomic.Int64
	shared  atomic.Int64
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the loader's logger.
func WithLogger(l *slog.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// New creates a loader.
func New(reg *registry.Registry, importer Importer, opts ...Option) *Loader {
	l := &Loader{
		registry: reg,
		importer: importer,
		modules:  newMemo[moduleKey, Module](),
		files:    newMemo[string, Exports](),
		routes:   newMemo[registry.PageID, route.Definition](),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Registry returns the loader's registry.
func (l *Loader) Registry() *registry.Registry {
	return l.registry
}

// Stats returns a snapshot of the loader counters.
func (l *Loader) Stats() Stats {
	return Stats{
		Imports: l.imports.Load(),
		Loads:   l.loads.Load(),
		Shared:  l.shared.Load(),
	}
}

// Load returns the module of the given kind for a page. Missing optional
// files yield a Module with Absent set. A page without a view file fails
// with E202 and a view without a page export with E203.
func (l *Loader) Load(ctx context.Context, id registry.PageID, kind Kind) (Module, error) {
	l.loads.Inc()
	mod, shared, err := l.modules.do(ctx, moduleKey{id: id, kind: kind}, func(ctx context.Context) (Module, error) {
		return l.load(ctx, id, kind)
	})
	if shared {
		l.shared.Inc()
	}
	return mod, err
}

func (l *Loader) load(ctx context.Context, id registry.PageID, kind Kind) (Module, error) {
	if !l.registry.Has(id) {
		return Module{}, fmt.Errorf("loader: unknown page %s", id)
	}

	file, ok := l.fileOf(id, kind)
	if !ok {
		if kind == View {
			return Module{}, errors.New("E202").WithDetailf("page %s", id)
		}
		return Module{Kind: kind, Absent: true}, nil
	}

	exports, err := l.importFile(ctx, file)
	if err != nil {
		return Module{}, err
	}

	if kind == View {
		if _, ok := exports[ExportPage]; !ok {
			if _, ok := exports[ExportDefault]; !ok {
				return Module{}, errors.New("E203").
					WithDetailf("exports: %v", exportNames(exports)).
					WithFile(file)
			}
		}
	}

	l.logger.Debug("page module loaded", "page_id", string(id), "kind", kind.String(), "file", file)
	return Module{Kind: kind, File: file, Exports: exports}, nil
}

func (l *Loader) fileOf(id registry.PageID, kind Kind) (string, bool) {
	switch kind {
	case View:
		return l.registry.File(id, registry.KindView)
	case Route:
		return l.registry.File(id, registry.KindRoute)
	case Server:
		return l.registry.File(id, registry.KindServer)
	case Client:
		return l.registry.File(id, registry.KindClient)
	case ServerDefault:
		return l.registry.DefaultFile(id, registry.KindServer)
	case ClientDefault:
		return l.registry.DefaultFile(id, registry.KindClient)
	}
	return "", false
}

// importFile imports a file at most once.
func (l *Loader) importFile(ctx context.Context, file string) (Exports, error) {
	exports, _, err := l.files.do(ctx, file, func(ctx context.Context) (Exports, error) {
		l.imports.Inc()
		exports, err := l.importer(ctx, file)
		if err != nil {
			return nil, errors.FromError(err, "E403").WithFile(file)
		}
		if exports == nil {
			exports = Exports{}
		}
		return exports, nil
	})
	return exports, err
}

// RouteDefinition returns the compiled route of a page: the default export
// of its .page.route file, or its filesystem route.
func (l *Loader) RouteDefinition(ctx context.Context, id registry.PageID) (route.Definition, error) {
	def, _, err := l.routes.do(ctx, id, func(ctx context.Context) (route.Definition, error) {
		mod, err := l.Load(ctx, id, Route)
		if err != nil {
			return route.Definition{}, err
		}
		if mod.Absent {
			return route.FilesystemDefinition(l.registry.FilesystemRoute(id)), nil
		}
		v, _ := mod.Export("default")
		return route.FromExport(v, mod.File)
	})
	return def, err
}

func exportNames(exports Exports) []string {
	names := make([]string, 0, len(exports))
	for name := range exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
