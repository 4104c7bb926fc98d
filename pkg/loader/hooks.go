package loader

import (
	"context"
	"reflect"

	"github.com/vango-dev/vps/internal/errors"
	"github.com/vango-dev/vps/pkg/registry"
)

// Export names recognized in page files.
const (
	ExportPage           = "Page"
	ExportDefault        = "default"
	ExportRender         = "render"
	ExportAddPageContext = "addPageContext"
	ExportPrerender      = "prerender"
	ExportPassToClient   = "passToClient"
	ExportDoNotPrerender = "doNotPrerender"
	ExportClientRouting  = "clientRouting"
)

// RenderArgs is passed to a render hook.
type RenderArgs struct {
	Page        any
	PageContext map[string]any
}

// RenderHook renders a page. Its result is passed through to the caller.
type RenderHook func(ctx context.Context, args RenderArgs) (any, error)

// AddPageContextArgs is passed to an addPageContext hook.
type AddPageContextArgs struct {
	Page        any
	PageContext map[string]any
}

// AddPageContextHook contributes fields to the page context.
type AddPageContextHook func(ctx context.Context, args AddPageContextArgs) (map[string]any, error)

// PrerenderHook enumerates the URLs of a page at build time. It returns a
// URL string, a {url, pageContext} entry or a slice of those.
type PrerenderHook func(ctx context.Context) (any, error)

// Hooks are the typed server and client exports of a page.
type Hooks struct {
	Render     RenderHook
	RenderFile string

	AddPageContext     AddPageContextHook
	AddPageContextFile string

	Prerender     PrerenderHook
	PrerenderFile string

	// PassToClient is the union of the default and page lists.
	PassToClient []string

	DoNotPrerender bool

	// ClientFile is the page's client entry (own or default), if any.
	ClientFile string

	// ClientRouting is the clientRouting export of the client module.
	ClientRouting bool
}

// View returns the view value exported by a page.
func (l *Loader) View(ctx context.Context, id registry.PageID) (any, error) {
	mod, err := l.Load(ctx, id, View)
	if err != nil {
		return nil, err
	}
	if v, ok := mod.Export(ExportPage); ok {
		return v, nil
	}
	v, _ := mod.Export(ExportDefault)
	return v, nil
}

// Hooks loads and converts the hooks of a page. The page's own server file
// overrides the nearest _default server file hook by hook.
func (l *Loader) Hooks(ctx context.Context, id registry.PageID) (*Hooks, error) {
	server, err := l.Load(ctx, id, Server)
	if err != nil {
		return nil, err
	}
	serverDefault, err := l.Load(ctx, id, ServerDefault)
	if err != nil {
		return nil, err
	}
	client, err := l.Load(ctx, id, Client)
	if err != nil {
		return nil, err
	}

	// Lowest precedence first.
	layers := []Module{serverDefault}
	if server.File != serverDefault.File {
		layers = append(layers, server)
	}

	h := &Hooks{}
	var errs []error
	seen := make(map[string]bool)

	for _, mod := range layers {
		if mod.Absent {
			continue
		}
		if v, ok := mod.Export(ExportRender); ok {
			fn, err := convertFunc[RenderHook](v, ExportRender, mod.File)
			errs = appendErr(errs, err)
			h.Render, h.RenderFile = fn, mod.File
		}
		if v, ok := mod.Export(ExportAddPageContext); ok {
			fn, err := convertFunc[AddPageContextHook](v, ExportAddPageContext, mod.File)
			errs = appendErr(errs, err)
			h.AddPageContext, h.AddPageContextFile = fn, mod.File
		}
		if v, ok := mod.Export(ExportPrerender); ok {
			fn, err := convertFunc[PrerenderHook](v, ExportPrerender, mod.File)
			errs = appendErr(errs, err)
			h.Prerender, h.PrerenderFile = fn, mod.File
		}
		if v, ok := mod.Export(ExportPassToClient); ok {
			keys, err := stringList(v, mod.File)
			errs = appendErr(errs, err)
			for _, k := range keys {
				if !seen[k] {
					seen[k] = true
					h.PassToClient = append(h.PassToClient, k)
				}
			}
		}
		if v, ok := mod.Export(ExportDoNotPrerender); ok {
			b, err := boolExport(v, ExportDoNotPrerender, mod.File)
			errs = appendErr(errs, err)
			h.DoNotPrerender = b
		}
	}

	h.ClientFile = client.File
	if v, ok := client.Export(ExportClientRouting); ok {
		b, err := boolExport(v, ExportClientRouting, client.File)
		errs = appendErr(errs, err)
		h.ClientRouting = b
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return h, nil
}

func appendErr(errs []error, err error) []error {
	if err != nil {
		return append(errs, err)
	}
	return errs
}

// convertFunc accepts T itself or any func value whose type converts to T.
func convertFunc[T any](v any, name, file string) (T, error) {
	if fn, ok := v.(T); ok {
		return fn, nil
	}
	var zero T
	want := reflect.TypeOf(zero)
	rv := reflect.ValueOf(v)
	if rv.IsValid() && rv.Kind() == reflect.Func && !rv.IsNil() && rv.Type().ConvertibleTo(want) {
		return rv.Convert(want).Interface().(T), nil
	}
	return zero, errors.New("E204").
		WithDetailf("%s must be a %s, got %T", name, want, v).
		WithFile(file)
}

func stringList(v any, file string) ([]string, error) {
	switch x := v.(type) {
	case []string:
		return x, nil
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, errors.New("E204").
					WithDetailf("passToClient entries must be strings, got %T", item).
					WithFile(file)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, errors.New("E204").
		WithDetailf("passToClient must be a []string, got %T", v).
		WithFile(file)
}

func boolExport(v any, name, file string) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, errors.New("E204").
			WithDetailf("%s must be a bool, got %T", name, v).
			WithFile(file)
	}
	return b, nil
}
