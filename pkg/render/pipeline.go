package render

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vango-dev/vps/internal/errors"
	"github.com/vango-dev/vps/internal/hook"
	"github.com/vango-dev/vps/pkg/assets"
	"github.com/vango-dev/vps/pkg/loader"
	"github.com/vango-dev/vps/pkg/pagecontext"
	"github.com/vango-dev/vps/pkg/registry"
	"github.com/vango-dev/vps/pkg/route"
	"github.com/vango-dev/vps/pkg/routepath"
)

// ErrNotFound is returned by ClientContext when no page matches a URL.
var ErrNotFound = stderrors.New("render: no page matches the URL")

// Config configures a Pipeline.
type Config struct {
	// Loader loads page modules. Required.
	Loader *loader.Loader

	// Resolver resolves URLs. Defaults to a resolver reading route
	// definitions from Loader.
	Resolver *route.Resolver

	// Assets resolves client entry scripts. Defaults to a passthrough
	// resolver with prefix "/".
	Assets assets.Resolver

	// Middleware wraps every invocation, outermost first.
	Middleware []Middleware

	Logger *slog.Logger
}

// Pipeline renders pages. It is safe for concurrent use; each invocation
// owns its page context.
type Pipeline struct {
	loader     *loader.Loader
	registry   *registry.Registry
	resolver   *route.Resolver
	assets     assets.Resolver
	middleware []Middleware
	logger     *slog.Logger

	// routable are the page ids URLs resolve against: every page but the
	// error page, in registry order.
	routable []registry.PageID
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	p := &Pipeline{
		loader:     cfg.Loader,
		registry:   cfg.Loader.Registry(),
		resolver:   cfg.Resolver,
		assets:     cfg.Assets,
		middleware: cfg.Middleware,
		logger:     cfg.Logger,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.resolver == nil {
		p.resolver = route.NewResolver(cfg.Loader, route.WithLogger(p.logger))
	}
	if p.assets == nil {
		p.assets = assets.NewPassthroughResolver("/")
	}
	for _, id := range p.registry.PageIDs() {
		if !p.registry.IsErrorPage(id) {
			p.routable = append(p.routable, id)
		}
	}
	return p
}

// Loader returns the pipeline's loader.
func (p *Pipeline) Loader() *loader.Loader { return p.loader }

// Registry returns the pipeline's registry.
func (p *Pipeline) Registry() *registry.Registry { return p.registry }

// Resolver returns the pipeline's resolver.
func (p *Pipeline) Resolver() *route.Resolver { return p.resolver }

// Routable returns the page ids URLs are resolved against.
func (p *Pipeline) Routable() []registry.PageID {
	out := make([]registry.PageID, len(p.routable))
	copy(out, p.routable)
	return out
}

// Outcome is the result of one invocation.
type Outcome struct {
	InvocationID string

	// NothingRendered is set when neither the page nor the error page
	// produced a result. The caller should fall back to another handler.
	NothingRendered bool

	// StatusCode is 200, 404 or 500.
	StatusCode int

	Result      *Result
	PageContext pagecontext.PageContext

	// PageID is the page that produced Result.
	PageID registry.PageID

	// Err is the error that made the page fail, if any.
	Err error

	// Warnings are non-fatal problems found along the way.
	Warnings []error
}

type options struct {
	skipAddPageContext bool
	strict             bool
	failFast           bool
}

// Option adjusts a single invocation.
type Option func(*options)

// SkipAddPageContext skips the addPageContext hook.
func SkipAddPageContext() Option {
	return func(o *options) { o.skipAddPageContext = true }
}

// Strict makes ambiguous routes fail with E205.
func Strict() Option {
	return func(o *options) { o.strict = true }
}

// FailFast returns page errors from the invocation instead of rendering
// the error page with status 500.
func FailFast() Option {
	return func(o *options) { o.failFast = true }
}

// Render resolves url and renders the matching page. The returned error
// is only set by middleware or, with FailFast, by a failing page; page
// errors are otherwise reported through the Outcome.
func (p *Pipeline) Render(ctx context.Context, url string, initial map[string]any, opts ...Option) (*Outcome, error) {
	return p.run(ctx, url, opts, func(ctx context.Context, o options) *Outcome {
		u, err := routepath.Parse(url)
		if err != nil {
			return p.notFound(ctx, rawURL(url), initial, o)
		}

		var ropts []route.ResolveOption
		if o.strict {
			ropts = append(ropts, route.Strict())
		}
		res, err := p.resolver.ResolveURL(ctx, u, p.routable, initial, ropts...)
		if err != nil {
			return p.fail(ctx, u, initial, "", err, o)
		}
		if res == nil {
			return p.notFound(ctx, u, initial, o)
		}

		out := p.renderRoute(ctx, u, res.PageID, res.Params, initial, o)
		if res.Warning != nil {
			out.Warnings = append(out.Warnings, res.Warning)
		}
		return out
	})
}

// RenderPage renders page id for url without resolving the URL.
func (p *Pipeline) RenderPage(ctx context.Context, url string, id registry.PageID, params map[string]string, initial map[string]any, opts ...Option) (*Outcome, error) {
	return p.run(ctx, url, opts, func(ctx context.Context, o options) *Outcome {
		u, err := routepath.Parse(url)
		if err != nil {
			return p.fail(ctx, rawURL(url), initial, id, err, o)
		}
		return p.renderRoute(ctx, u, id, params, initial, o)
	})
}

// RenderNotFound renders the error page for url with status 404.
func (p *Pipeline) RenderNotFound(ctx context.Context, url string, initial map[string]any, opts ...Option) (*Outcome, error) {
	return p.run(ctx, url, opts, func(ctx context.Context, o options) *Outcome {
		u, err := routepath.Parse(url)
		if err != nil {
			u = rawURL(url)
		}
		return p.notFound(ctx, u, initial, o)
	})
}

// run wraps one invocation with middleware and logging.
func (p *Pipeline) run(ctx context.Context, url string, opts []Option, fn func(context.Context, options) *Outcome) (*Outcome, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	info := &Info{InvocationID: uuid.NewString(), URL: url, Start: time.Now()}
	var out *Outcome
	handler := func(ctx context.Context) error {
		out = fn(ctx, o)
		out.InvocationID = info.InvocationID
		info.Outcome = out
		if o.failFast {
			return out.Err
		}
		return nil
	}

	err := chain(p.middleware, info, handler)(ctx)
	if out == nil {
		out = &Outcome{
			InvocationID:    info.InvocationID,
			NothingRendered: true,
			StatusCode:      http.StatusInternalServerError,
			Err:             err,
		}
	}

	p.logger.Debug("page rendered",
		"url", url,
		"page_id", string(out.PageID),
		"status", out.StatusCode,
		"invocation_id", info.InvocationID,
		"duration", time.Since(info.Start),
	)
	return out, err
}

func (p *Pipeline) renderRoute(ctx context.Context, u *routepath.URL, id registry.PageID, params map[string]string, initial map[string]any, o options) *Outcome {
	if params == nil {
		params = map[string]string{}
	}
	pc := pagecontext.Accumulate(u.Fields(), initial, map[string]any{pagecontext.KeyRouteParams: params})
	out, err := p.renderPage(ctx, id, pc, o, false)
	if err != nil {
		return p.fail(ctx, u, initial, id, err, o)
	}
	return out
}

// renderPage runs the loading, context building and rendering steps for
// one page.
func (p *Pipeline) renderPage(ctx context.Context, id registry.PageID, pc pagecontext.PageContext, o options, isErrorPage bool) (*Outcome, error) {
	view, err := p.loader.View(ctx, id)
	if err != nil {
		return nil, err
	}
	hooks, err := p.loader.Hooks(ctx, id)
	if err != nil {
		return nil, err
	}

	if !o.skipAddPageContext && hooks.AddPageContext != nil {
		var added map[string]any
		err := hook.Call(loader.ExportAddPageContext, hooks.AddPageContextFile, func() error {
			var err error
			added, err = hooks.AddPageContext(ctx, loader.AddPageContextArgs{Page: view, PageContext: pc})
			return err
		})
		if err != nil {
			if added, err = redirectContext(err); err != nil {
				return nil, err
			}
		}
		pc = pc.With(added)
	}

	if hooks.Render == nil {
		return nil, errors.New("E207").WithDetailf("page %s", id)
	}

	var value any
	err = hook.Call(loader.ExportRender, hooks.RenderFile, func() error {
		var err error
		value, err = hooks.Render(ctx, loader.RenderArgs{Page: view, PageContext: pc})
		return err
	})
	if err != nil {
		if r, ok := redirectOf(err); ok {
			return &Outcome{StatusCode: http.StatusOK, Result: r, PageContext: pc, PageID: id}, nil
		}
		return nil, err
	}

	result, err := p.classify(value, pc, hooks, isErrorPage)
	if err != nil {
		return nil, err
	}
	return &Outcome{StatusCode: http.StatusOK, Result: result, PageContext: pc, PageID: id}, nil
}

func (p *Pipeline) classify(value any, pc pagecontext.PageContext, hooks *loader.Hooks, isErrorPage bool) (*Result, error) {
	markup, ok := markupOf(value)
	if !ok {
		if r, ok := redirectOf(value); ok {
			return r, nil
		}
		return &Result{Kind: ResultCustom, Value: value}, nil
	}

	data, err := p.clientContext(pc, hooks, isErrorPage)
	if err != nil {
		return nil, err
	}
	var entry string
	if hooks.ClientFile != "" {
		entry = p.assets.Asset(hooks.ClientFile)
	}
	return &Result{
		Kind:            ResultDocument,
		Markup:          injectScripts(markup, data, entry),
		PageContextJSON: data,
		Value:           value,
	}, nil
}

func (p *Pipeline) clientContext(pc pagecontext.PageContext, hooks *loader.Hooks, isErrorPage bool) (string, error) {
	client, err := pagecontext.Select(pc, hooks.PassToClient)
	if err != nil {
		return "", err
	}
	if isErrorPage {
		delete(client, pagecontext.KeyError)
	}
	return pagecontext.Serialize(client)
}

// fail handles an errored invocation: status 500 and the error page.
func (p *Pipeline) fail(ctx context.Context, u *routepath.URL, initial map[string]any, id registry.PageID, cause error, o options) *Outcome {
	out := &Outcome{StatusCode: http.StatusInternalServerError, PageID: id, Err: cause}
	if o.failFast {
		return out
	}
	p.logger.Error("page render failed",
		"url", u.Full,
		"page_id", string(id),
		"error", cause,
	)
	return p.renderErrorPage(ctx, u, initial, cause, out, o)
}

func (p *Pipeline) notFound(ctx context.Context, u *routepath.URL, initial map[string]any, o options) *Outcome {
	out := &Outcome{StatusCode: http.StatusNotFound}
	return p.renderErrorPage(ctx, u, initial, nil, out, o)
}

// renderErrorPage renders the error page into out, or marks out as
// nothing rendered.
func (p *Pipeline) renderErrorPage(ctx context.Context, u *routepath.URL, initial map[string]any, cause error, out *Outcome, o options) *Outcome {
	id := p.registry.ErrorPageID()
	if id == "" {
		out.NothingRendered = true
		return out
	}

	is404 := cause == nil
	pageProps := map[string]any{}
	if existing, ok := initial[pagecontext.KeyPageProps].(map[string]any); ok {
		for k, v := range existing {
			pageProps[k] = v
		}
	}
	pageProps[pagecontext.KeyIs404] = is404

	extra := map[string]any{
		pagecontext.KeyRouteParams: map[string]string{},
		pagecontext.KeyIs404:       is404,
		pagecontext.KeyPageProps:   pageProps,
	}
	if cause != nil {
		extra[pagecontext.KeyError] = cause
	}

	pc := pagecontext.Accumulate(u.Fields(), initial, extra)
	page, err := p.renderPage(ctx, id, pc, o, true)
	if err != nil {
		p.logger.Error("error page failed",
			"url", u.Full,
			"page_id", string(id),
			"error", err,
		)
		out.NothingRendered = true
		if out.Err == nil {
			out.Err = err
		}
		return out
	}

	out.Result = page.Result
	out.PageContext = page.PageContext
	out.PageID = id
	return out
}

// ClientContext resolves url and returns the serialized client context
// of the matching page, as needed for client-side navigation. It returns
// ErrNotFound when no page matches and a Redirector error when
// addPageContext redirects.
func (p *Pipeline) ClientContext(ctx context.Context, url string, initial map[string]any) (string, error) {
	u, err := routepath.Parse(url)
	if err != nil {
		return "", ErrNotFound
	}
	res, err := p.resolver.ResolveURL(ctx, u, p.routable, initial)
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", ErrNotFound
	}

	view, err := p.loader.View(ctx, res.PageID)
	if err != nil {
		return "", err
	}
	hooks, err := p.loader.Hooks(ctx, res.PageID)
	if err != nil {
		return "", err
	}

	pc := pagecontext.Accumulate(u.Fields(), initial, res.ContextAddendum)
	if hooks.AddPageContext != nil {
		var added map[string]any
		err := hook.Call(loader.ExportAddPageContext, hooks.AddPageContextFile, func() error {
			var err error
			added, err = hooks.AddPageContext(ctx, loader.AddPageContextArgs{Page: view, PageContext: pc})
			return err
		})
		if err != nil {
			if added, err = redirectContext(err); err != nil {
				return "", err
			}
		}
		pc = pc.With(added)
	}
	if r, ok := pc[pagecontext.KeyRedirectTo].(Redirector); ok {
		if err, ok := r.(error); ok {
			return "", err
		}
		return "", redirectError{r}
	}
	return p.clientContext(pc, hooks, false)
}

// redirectContext turns a redirect raised by addPageContext into the
// contribution {redirectTo: redirect}. Other errors are returned as is.
func redirectContext(err error) (map[string]any, error) {
	var r Redirector
	if !errors.As(err, &r) {
		return nil, err
	}
	return map[string]any{pagecontext.KeyRedirectTo: r}, nil
}

// redirectError reports a redirect found in a page context as an error.
type redirectError struct{ Redirector }

func (e redirectError) Error() string { return "redirect to " + e.RedirectURL() }

func (e redirectError) RedirectStatus() int {
	if s, ok := e.Redirector.(interface{ RedirectStatus() int }); ok {
		return s.RedirectStatus()
	}
	return http.StatusFound
}

// rawURL wraps a URL that failed to parse so the error page still gets
// its URL fields.
func rawURL(url string) *routepath.URL {
	return &routepath.URL{
		Full:             url,
		Pathname:         url,
		PathnameOriginal: url,
		Search:           map[string]string{},
		SearchAll:        map[string][]string{},
	}
}
