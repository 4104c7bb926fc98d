package loader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/atomic"

	vpserrors "github.com/vango-dev/vps/internal/errors"
	"github.com/vango-dev/vps/pkg/registry"
	"github.com/vango-dev/vps/pkg/route"
)

func render(context.Context, RenderArgs) (any, error) { return "<html></html>", nil }

func newTestLoader(t *testing.T, table map[string]Exports) (*Loader, *atomic.Int64) {
	t.Helper()
	files := make([]string, 0, len(table))
	for f := range table {
		files = append(files, f)
	}
	reg, err := registry.New(files)
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}

	calls := atomic.NewInt64(0)
	static := StaticImporter(table)
	importer := func(ctx context.Context, file string) (Exports, error) {
		calls.Inc()
		return static(ctx, file)
	}
	l := New(reg, importer, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return l, calls
}

func TestLoadConcurrentCallersShareOneImport(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	view := Exports{"Page": "movie view"}

	reg, err := registry.New([]string{"/pages/movie.page.go"})
	if err != nil {
		t.Fatal(err)
	}
	calls := atomic.NewInt64(0)
	l := New(reg, func(context.Context, string) (Exports, error) {
		if calls.Inc() == 1 {
			close(entered)
		}
		<-release
		return view, nil
	})

	const n = 50
	results := make([]Module, n)
	var wg sync.WaitGroup
	load := func(i int) {
		defer wg.Done()
		mod, err := l.Load(context.Background(), "/pages/movie", View)
		if err != nil {
			t.Errorf("Load() error = %v", err)
		}
		results[i] = mod
	}

	wg.Add(1)
	go load(0)
	<-entered
	for i := 1; i < n; i++ {
		wg.Add(1)
		go load(i)
	}
	deadline := time.Now().Add(5 * time.Second)
	for l.Stats().Loads != n {
		if time.Now().After(deadline) {
			t.Fatalf("only %d of %d callers started", l.Stats().Loads, n)
		}
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("importer called %d times, want 1", got)
	}
	for i, mod := range results {
		if reflect.ValueOf(mod.Exports).Pointer() != reflect.ValueOf(view).Pointer() {
			t.Errorf("result %d is not the shared instance", i)
		}
	}
	if s := l.Stats(); s.Imports != 1 || s.Loads != n || s.Shared != n-1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestLoadCanceledCallerDoesNotDecideResult(t *testing.T) {
	reg, err := registry.New([]string{"/pages/movie.page.go"})
	if err != nil {
		t.Fatal(err)
	}
	calls := atomic.NewInt64(0)
	l := New(reg, func(ctx context.Context, _ string) (Exports, error) {
		calls.Inc()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return Exports{"Page": "movie view"}, nil
	})

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	_, _ = l.Load(canceled, "/pages/movie", View)

	mod, err := l.Load(context.Background(), "/pages/movie", View)
	if err != nil {
		t.Fatalf("Load() after canceled caller error = %v", err)
	}
	if mod.Exports["Page"] != "movie view" {
		t.Errorf("Load() exports = %v", mod.Exports)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("importer called %d times, want 1", got)
	}
}

func TestLoadWaiterStopsOnItsOwnContext(t *testing.T) {
	release := make(chan struct{})
	reg, err := registry.New([]string{"/pages/movie.page.go"})
	if err != nil {
		t.Fatal(err)
	}
	l := New(reg, func(context.Context, string) (Exports, error) {
		<-release
		return Exports{"Page": "movie view"}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Load(ctx, "/pages/movie", View); !errors.Is(err, context.Canceled) {
		t.Fatalf("Load() error = %v, want context.Canceled", err)
	}

	close(release)
	if _, err := l.Load(context.Background(), "/pages/movie", View); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestLoadSharesDefaultFile(t *testing.T) {
	l, calls := newTestLoader(t, map[string]Exports{
		"/pages/_default.page.server.go": {"render": RenderHook(render)},
		"/pages/a.page.go":               {"Page": "a"},
		"/pages/b.page.go":               {"Page": "b"},
	})

	ctx := context.Background()
	for _, id := range []registry.PageID{"/pages/a", "/pages/b"} {
		for _, kind := range []Kind{Server, ServerDefault} {
			mod, err := l.Load(ctx, id, kind)
			if err != nil {
				t.Fatalf("Load(%s, %s) error = %v", id, kind, err)
			}
			if mod.File != "/pages/_default.page.server.go" {
				t.Errorf("Load(%s, %s).File = %q", id, kind, mod.File)
			}
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("default file imported %d times, want 1", got)
	}
}

func TestLoadAbsent(t *testing.T) {
	l, _ := newTestLoader(t, map[string]Exports{
		"/pages/a.page.go": {"Page": "a"},
	})
	for _, kind := range []Kind{Route, Server, Client, ServerDefault, ClientDefault} {
		mod, err := l.Load(context.Background(), "/pages/a", kind)
		if err != nil {
			t.Fatalf("Load(%s) error = %v", kind, err)
		}
		if !mod.Absent {
			t.Errorf("Load(%s).Absent = false", kind)
		}
		if _, ok := mod.Export("render"); ok {
			t.Errorf("absent module has exports")
		}
	}
}

func TestLoadViewErrors(t *testing.T) {
	l, _ := newTestLoader(t, map[string]Exports{
		"/pages/noview.page.server.go": {"render": RenderHook(render)},
		"/pages/empty.page.go":         {"title": "x"},
		"/pages/dflt.page.go":          {"default": "view"},
	})
	ctx := context.Background()

	if _, err := l.Load(ctx, "/pages/noview", View); !vpserrors.HasCode(err, "E202") {
		t.Errorf("missing view error = %v, want E202", err)
	}
	if _, err := l.Load(ctx, "/pages/empty", View); !vpserrors.HasCode(err, "E203") {
		t.Errorf("view without page export error = %v, want E203", err)
	}
	v, err := l.View(ctx, "/pages/dflt")
	if err != nil || v != "view" {
		t.Errorf("View() = %v, %v", v, err)
	}
}

func TestLoadFailureIsMemoized(t *testing.T) {
	reg, err := registry.New([]string{"/pages/a.page.go"})
	if err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	calls := 0
	l := New(reg, func(context.Context, string) (Exports, error) {
		calls++
		return nil, boom
	})

	for i := 0; i < 3; i++ {
		_, err := l.Load(context.Background(), "/pages/a", View)
		if !vpserrors.HasCode(err, "E403") || !errors.Is(err, boom) {
			t.Fatalf("Load() error = %v, want E403 wrapping boom", err)
		}
	}
	if calls != 1 {
		t.Errorf("importer called %d times, want 1", calls)
	}
}

func TestLoadImporterPanic(t *testing.T) {
	reg, err := registry.New([]string{"/pages/a.page.go"})
	if err != nil {
		t.Fatal(err)
	}
	l := New(reg, func(context.Context, string) (Exports, error) {
		panic("bad module")
	})
	if _, err := l.Load(context.Background(), "/pages/a", View); !vpserrors.HasCode(err, "E402") {
		t.Errorf("Load() error = %v, want E402", err)
	}
}

func TestLoadUnknownPage(t *testing.T) {
	l, _ := newTestLoader(t, map[string]Exports{"/pages/a.page.go": {"Page": "a"}})
	if _, err := l.Load(context.Background(), "/pages/zzz", View); err == nil {
		t.Error("Load() of an unknown page should fail")
	}
}

func TestHooksOverrideDefault(t *testing.T) {
	var order []string
	defaultRender := func(context.Context, RenderArgs) (any, error) { order = append(order, "default"); return nil, nil }
	ownRender := func(context.Context, RenderArgs) (any, error) { order = append(order, "own"); return nil, nil }
	addCtx := func(context.Context, AddPageContextArgs) (map[string]any, error) { return nil, nil }

	l, _ := newTestLoader(t, map[string]Exports{
		"/pages/_default.page.server.go": {
			"render":         defaultRender,
			"addPageContext": addCtx,
			"passToClient":   []string{"title", "user.id"},
			"doNotPrerender": true,
		},
		"/pages/_default.page.client.go": {"clientRouting": true},
		"/pages/a.page.go":               {"Page": "a"},
		"/pages/a.page.server.go": {
			"render":         ownRender,
			"passToClient":   []any{"movie", "title"},
			"doNotPrerender": false,
		},
		"/pages/b.page.go": {"Page": "b"},
	})
	ctx := context.Background()

	h, err := l.Hooks(ctx, "/pages/a")
	if err != nil {
		t.Fatalf("Hooks() error = %v", err)
	}
	if _, err := h.Render(ctx, RenderArgs{}); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(order, []string{"own"}) {
		t.Errorf("page render should override the default, called %v", order)
	}
	if h.RenderFile != "/pages/a.page.server.go" {
		t.Errorf("RenderFile = %q", h.RenderFile)
	}
	if h.AddPageContext == nil || h.AddPageContextFile != "/pages/_default.page.server.go" {
		t.Errorf("addPageContext should come from the default file")
	}
	if want := []string{"title", "user.id", "movie"}; !reflect.DeepEqual(h.PassToClient, want) {
		t.Errorf("PassToClient = %v, want %v", h.PassToClient, want)
	}
	if h.DoNotPrerender {
		t.Error("page doNotPrerender should override the default")
	}
	if !h.ClientRouting {
		t.Error("ClientRouting should come from the default client file")
	}

	h, err = l.Hooks(ctx, "/pages/b")
	if err != nil {
		t.Fatal(err)
	}
	if !h.DoNotPrerender || h.Render == nil {
		t.Errorf("Hooks(b) = %+v", h)
	}
}

func TestHooksTypeErrors(t *testing.T) {
	l, _ := newTestLoader(t, map[string]Exports{
		"/pages/a.page.go": {"Page": "a"},
		"/pages/a.page.server.go": {
			"render":         "not a func",
			"passToClient":   []any{1},
			"doNotPrerender": "yes",
			"prerender":      func() []string { return nil },
		},
	})
	_, err := l.Hooks(context.Background(), "/pages/a")
	if !vpserrors.HasCode(err, "E204") {
		t.Fatalf("Hooks() error = %v, want E204", err)
	}
	// All four problems are reported together.
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) || len(joined.Unwrap()) != 4 {
		t.Errorf("Hooks() error = %v, want 4 joined errors", err)
	}
}

func TestRouteDefinition(t *testing.T) {
	l, _ := newTestLoader(t, map[string]Exports{
		"/pages/index/index.page.go":       {"Page": "home"},
		"/pages/movie/index.page.go":       {"Page": "movie"},
		"/pages/movie/index.page.route.go": {"default": "/movie/:movieId"},
		"/pages/about/index.page.go":       {"Page": "about"},
	})
	ctx := context.Background()

	def, err := l.RouteDefinition(ctx, "/pages/movie/index")
	if err != nil {
		t.Fatal(err)
	}
	if def.Kind != route.String || def.Pattern.String() != "/movie/:movieId" {
		t.Errorf("RouteDefinition(movie) = %v", def)
	}

	def, err = l.RouteDefinition(ctx, "/pages/about/index")
	if err != nil {
		t.Fatal(err)
	}
	if def.Kind != route.Filesystem || def.Path != "/about" {
		t.Errorf("RouteDefinition(about) = %+v", def)
	}
}
