package prerender

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/vps/internal/errors"
	"github.com/vango-dev/vps/pkg/loader"
	"github.com/vango-dev/vps/pkg/output"
	"github.com/vango-dev/vps/pkg/pagecontext"
	"github.com/vango-dev/vps/pkg/registry"
	"github.com/vango-dev/vps/pkg/render"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newPipeline(t *testing.T, tables ...map[string]loader.Exports) *render.Pipeline {
	t.Helper()
	table := map[string]loader.Exports{}
	for _, tb := range tables {
		for k, v := range tb {
			table[k] = v
		}
	}
	files := make([]string, 0, len(table))
	for f := range table {
		files = append(files, f)
	}
	reg, err := registry.New(files)
	require.NoError(t, err)
	ld := loader.New(reg, loader.StaticImporter(table), loader.WithLogger(discard))
	return render.New(render.Config{Loader: ld, Logger: discard})
}

func run(t *testing.T, p *render.Pipeline, opts Options) (*Report, *output.MemorySink, error) {
	t.Helper()
	sink := output.NewMemorySink()
	opts.Logger = discard
	o, err := New(p, sink, opts)
	require.NoError(t, err)
	report, err := o.Run(context.Background())
	return report, sink, err
}

func htmlRender(_ context.Context, args loader.RenderArgs) (any, error) {
	title := args.PageContext["title"]
	if title == nil {
		title = args.Page
	}
	return render.HTML(fmt.Sprintf("<html><body>%v</body></html>", title)), nil
}

func basics() map[string]loader.Exports {
	return map[string]loader.Exports{
		"/pages/_default.page.server.go": {"render": htmlRender},
		"/pages/index.page.go":           {"Page": "home"},
		"/pages/about.page.go":           {"Page": "about"},
		"/pages/_error.page.go":          {"Page": "error"},
	}
}

func movies(prerender loader.PrerenderHook) map[string]loader.Exports {
	return map[string]loader.Exports{
		"/pages/movie.page.go":        {"Page": "movie"},
		"/pages/movie.page.route.go":  {"default": "/movie/:id"},
		"/pages/movie.page.client.go": {"clientRouting": true},
		"/pages/movie.page.server.go": {
			"prerender":    prerender,
			"passToClient": []string{"title"},
			"addPageContext": func(_ context.Context, args loader.AddPageContextArgs) (map[string]any, error) {
				params := args.PageContext["routeParams"].(map[string]string)
				return map[string]any{"title": "fetched " + params["id"]}, nil
			},
		},
	}
}

func markup(t *testing.T, sink *output.MemorySink, name string) string {
	t.Helper()
	data, ok := sink.File(name)
	require.True(t, ok, "missing %s in %v", name, sink.Names())
	return string(data)
}

func TestRunWritesSite(t *testing.T) {
	p := newPipeline(t, basics(), movies(func(context.Context) (any, error) {
		return []any{
			"/movie/1",
			map[string]any{"url": "/movie/2", "pageContext": map[string]any{"title": "Two"}},
		}, nil
	}))

	report, sink, err := run(t, p, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/404.html",
		"/about/index.html",
		"/index.html",
		"/movie/1/index.html",
		"/movie/1/index.pageContext.json",
		"/movie/2/index.html",
		"/movie/2/index.pageContext.json",
	}, sink.Names())

	assert.Contains(t, markup(t, sink, "/index.html"), "home")
	assert.Contains(t, markup(t, sink, "/about/index.html"), "about")
	assert.Contains(t, markup(t, sink, "/404.html"), "error")

	// addPageContext runs for plain URLs and is skipped for entries that
	// carry their own page context.
	assert.Contains(t, markup(t, sink, "/movie/1/index.html"), "fetched 1")
	assert.Contains(t, markup(t, sink, "/movie/2/index.html"), "Two")
	assert.NotContains(t, markup(t, sink, "/movie/2/index.html"), "fetched")

	client, err := pagecontext.ParseContext(markup(t, sink, "/movie/2/index.pageContext.json"))
	require.NoError(t, err)
	assert.Equal(t, "Two", client["title"])
	assert.Equal(t, "/movie/2", client["urlPathname"])

	require.Len(t, report.Pages, 5)
	assert.Empty(t, report.Warnings)
	for _, wp := range report.Pages {
		if wp.URL == NotFoundURL {
			assert.Equal(t, 404, wp.StatusCode)
			assert.Equal(t, registry.PageID("/pages/_error"), wp.PageID)
			assert.Empty(t, wp.PageContextPath)
		}
	}
}

func TestRunWritesSequentially(t *testing.T) {
	p := newPipeline(t, basics(), movies(func(context.Context) (any, error) {
		return []string{"/movie/1", "/movie/2", "/movie/3"}, nil
	}))
	_, sink, err := run(t, p, Options{Concurrency: 8})
	require.NoError(t, err)

	// Hook URLs first, then static pages, then the 404 fallback.
	assert.Equal(t, []string{
		"/movie/1/index.html",
		"/movie/1/index.pageContext.json",
		"/movie/2/index.html",
		"/movie/2/index.pageContext.json",
		"/movie/3/index.html",
		"/movie/3/index.pageContext.json",
		"/about/index.html",
		"/index.html",
		"/404.html",
	}, sink.Writes())
}

func TestRunWarnsAboutParameterizedPages(t *testing.T) {
	table := basics()
	table["/pages/movie.page.go"] = loader.Exports{"Page": "movie"}
	table["/pages/movie.page.route.go"] = loader.Exports{"default": "/movie/:id"}
	p := newPipeline(t, table)

	report, sink, err := run(t, p, Options{})
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.True(t, errors.HasCode(report.Warnings[0], "W302"))
	assert.True(t, errors.IsWarning(report.Warnings[0]))
	assert.NotContains(t, sink.Names(), "/movie/index.html")

	report, _, err = run(t, p, Options{Partial: true})
	require.NoError(t, err)
	assert.Empty(t, report.Warnings)
}

func TestRunRendersLiteralRouteStrings(t *testing.T) {
	table := basics()
	table["/pages/contact.page.go"] = loader.Exports{"Page": "contact"}
	table["/pages/contact.page.route.go"] = loader.Exports{"default": "/get-in-touch"}
	p := newPipeline(t, table)

	_, sink, err := run(t, p, Options{})
	require.NoError(t, err)
	assert.Contains(t, markup(t, sink, "/get-in-touch/index.html"), "contact")
}

func TestRunSkipsDoNotPrerender(t *testing.T) {
	table := basics()
	table["/pages/about.page.server.go"] = loader.Exports{"doNotPrerender": true}
	p := newPipeline(t, table)

	report, sink, err := run(t, p, Options{})
	require.NoError(t, err)
	assert.NotContains(t, sink.Names(), "/about/index.html")
	assert.Empty(t, report.Warnings)
}

func TestRunUnmatchedURL(t *testing.T) {
	p := newPipeline(t, basics(), movies(func(context.Context) (any, error) {
		return []string{"/movie/1", "/film/2"}, nil
	}))

	_, sink, err := run(t, p, Options{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, "E211"))
	assert.True(t, errors.IsUsage(err))
	assert.Contains(t, err.Error(), "/film/2")
	assert.Contains(t, err.Error(), "/pages/movie.page.server.go")
	assert.Empty(t, sink.Names(), "nothing may be written after a usage error")
}

func TestRunInvalidHookResultsAreJoined(t *testing.T) {
	p := newPipeline(t, basics(), movies(func(context.Context) (any, error) {
		return []any{
			"movie/1",
			map[string]any{"url": "/movie/2", "pageProps": 1},
			map[string]any{"url": 3},
			42,
		}, nil
	}))

	_, sink, err := run(t, p, Options{})
	require.Error(t, err)
	for _, code := range []string{"E208", "E209", "E210"} {
		assert.True(t, errors.HasCode(err, code), "missing %s in %v", code, err)
	}
	assert.Empty(t, sink.Names())
}

func TestRunHookError(t *testing.T) {
	boom := stderrors.New("api down")
	p := newPipeline(t, basics(), movies(func(context.Context) (any, error) {
		return nil, boom
	}))

	_, _, err := run(t, p, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, errors.IsHook(err))
}

func TestRunRenderErrorIsFatal(t *testing.T) {
	table := basics()
	table["/pages/about.page.server.go"] = loader.Exports{
		"render": func(context.Context, loader.RenderArgs) (any, error) {
			return nil, stderrors.New("template missing")
		},
	}
	p := newPipeline(t, table)

	_, sink, err := run(t, p, Options{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, "E401"))
	assert.Contains(t, err.Error(), "/about")
	assert.Empty(t, sink.Names())
}

func TestRunNonDocumentResult(t *testing.T) {
	table := basics()
	table["/pages/about.page.server.go"] = loader.Exports{
		"render": func(context.Context, loader.RenderArgs) (any, error) {
			return render.Redirect{URL: "/"}, nil
		},
	}
	p := newPipeline(t, table)

	_, sink, err := run(t, p, Options{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, "E212"))
	assert.Empty(t, sink.Names())
}

func TestRunAmbiguousURL(t *testing.T) {
	table := basics()
	table["/pages/a.page.go"] = loader.Exports{"Page": "a"}
	table["/pages/a.page.route.go"] = loader.Exports{"default": "/x/:id"}
	table["/pages/a.page.server.go"] = loader.Exports{
		"prerender": func(context.Context) (any, error) { return "/x/1", nil },
	}
	table["/pages/b.page.go"] = loader.Exports{"Page": "b"}
	table["/pages/b.page.route.go"] = loader.Exports{"default": "/x/:slug"}
	p := newPipeline(t, table)

	_, _, err := run(t, p, Options{Partial: true})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, "E205"))
}

func TestRunSharedHookCalledOnce(t *testing.T) {
	table := basics()
	calls := 0
	table["/pages/blog/_default.page.server.go"] = loader.Exports{
		"render": htmlRender,
		"prerender": func(context.Context) (any, error) {
			calls++
			return []string{"/blog/a/1", "/blog/b/1"}, nil
		},
	}
	table["/pages/blog/a.page.go"] = loader.Exports{"Page": "a"}
	table["/pages/blog/a.page.route.go"] = loader.Exports{"default": "/blog/a/:n"}
	table["/pages/blog/b.page.go"] = loader.Exports{"Page": "b"}
	table["/pages/blog/b.page.route.go"] = loader.Exports{"default": "/blog/b/:n"}
	p := newPipeline(t, table)

	sink := output.NewMemorySink()
	o, err := New(p, sink, Options{Logger: discard})
	require.NoError(t, err)
	report, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(1), o.Stats().HookCalls)
	assert.Empty(t, report.Warnings)
	assert.Contains(t, markup(t, sink, "/blog/a/1/index.html"), "a")
	assert.Contains(t, markup(t, sink, "/blog/b/1/index.html"), "b")
}

func TestRunExplicitNotFound(t *testing.T) {
	table := basics()
	table["/pages/missing.page.go"] = loader.Exports{"Page": "custom 404"}
	table["/pages/missing.page.route.go"] = loader.Exports{"default": "/404"}
	p := newPipeline(t, table)

	report, sink, err := run(t, p, Options{})
	require.NoError(t, err)
	assert.Contains(t, markup(t, sink, "/404.html"), "custom 404")
	assert.NotContains(t, sink.Names(), "/404/index.html")
	for _, wp := range report.Pages {
		assert.NotEqual(t, registry.PageID("/pages/_error"), wp.PageID)
	}
}

func TestRunWithoutErrorPage(t *testing.T) {
	table := basics()
	delete(table, "/pages/_error.page.go")
	p := newPipeline(t, table)

	_, sink, err := run(t, p, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"/about/index.html", "/index.html"}, sink.Names())
}

func TestRunDuplicateOutputPaths(t *testing.T) {
	p := newPipeline(t, basics(), movies(func(context.Context) (any, error) {
		return []string{"/movie/1", "/movie/1/"}, nil
	}))

	report, sink, err := run(t, p, Options{})
	require.NoError(t, err)
	count := 0
	for _, name := range sink.Writes() {
		if name == "/movie/1/index.html" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Len(t, report.Pages, 4)
}

func TestRunToDirectory(t *testing.T) {
	root := t.TempDir()
	p := newPipeline(t, basics())

	report, err := Run(context.Background(), p, nil, Options{Root: root, OutDir: "dist", Logger: discard})
	require.NoError(t, err)
	require.Len(t, report.Pages, 3)

	data, err := os.ReadFile(filepath.Join(root, "dist", "about", "index.html"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "about"))
}

func TestNewRequiresDestination(t *testing.T) {
	p := newPipeline(t, basics())
	_, err := New(p, nil, Options{})
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []Entry
		code  string
	}{
		{name: "nil", value: nil},
		{name: "string", value: "/a", want: []Entry{{URL: "/a"}}},
		{name: "strings", value: []string{"/a", "/b"}, want: []Entry{{URL: "/a"}, {URL: "/b"}}},
		{
			name:  "item with empty context",
			value: Item{URL: "/a", PageContext: map[string]any{}},
			want:  []Entry{{URL: "/a", PageContext: map[string]any{}, HasPageContext: true}},
		},
		{name: "item without context", value: []Item{{URL: "/a"}}, want: []Entry{{URL: "/a"}}},
		{
			name:  "map",
			value: map[string]any{"url": "/a", "pageContext": map[string]any{"k": 1}},
			want:  []Entry{{URL: "/a", PageContext: map[string]any{"k": 1}, HasPageContext: true}},
		},
		{name: "relative url", value: "a", code: "E208"},
		{name: "unknown key", value: map[string]any{"url": "/a", "x": 1}, code: "E209"},
		{name: "missing url", value: map[string]any{"pageContext": map[string]any{}}, code: "E210"},
		{name: "bad context", value: map[string]any{"url": "/a", "pageContext": "x"}, code: "E210"},
		{name: "nested slice", value: []any{[]string{"/a"}}, code: "E210"},
		{name: "number", value: 1, code: "E210"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.value, "/pages/a.page.server.go", "/pages/a")
			if tt.code != "" {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, tt.code), "error = %v, want %s", err, tt.code)
				return
			}
			require.NoError(t, err)
			for i := range tt.want {
				tt.want[i].SourceFile = "/pages/a.page.server.go"
				tt.want[i].PageID = "/pages/a"
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMergeEntries(t *testing.T) {
	got := mergeEntries([]Entry{
		{URL: "/a", PageContext: map[string]any{"x": 1, "y": 1}, HasPageContext: true},
		{URL: "/b"},
		{URL: "/a", PageContext: map[string]any{"y": 2}, HasPageContext: true},
		{URL: "/b"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "/a", got[0].url)
	assert.Equal(t, pagecontext.PageContext{"x": 1, "y": 2}, got[0].pageContext)
	assert.True(t, got[0].explicit)
	assert.Len(t, got[0].sources, 2)

	assert.Equal(t, "/b", got[1].url)
	assert.False(t, got[1].explicit)
	assert.Empty(t, got[1].pageContext)
}
