package prerender

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/vps/internal/errors"
	"github.com/vango-dev/vps/internal/hook"
	"github.com/vango-dev/vps/pkg/loader"
	"github.com/vango-dev/vps/pkg/output"
	"github.com/vango-dev/vps/pkg/registry"
	"github.com/vango-dev/vps/pkg/render"
	"github.com/vango-dev/vps/pkg/route"
)

// NotFoundURL is the URL the error page is prerendered at.
const NotFoundURL = "/404"

// Options configures a prerender run.
type Options struct {
	// Partial silences the warning for pages that cannot be prerendered
	// without a prerender hook.
	Partial bool

	// Root is the project root. A relative OutDir is resolved against it.
	Root string

	// OutDir is where documents are written when no sink is given.
	OutDir string

	// Concurrency limits the hooks and renders running at once.
	// Defaults to GOMAXPROCS.
	Concurrency int

	Logger *slog.Logger
}

// WrittenPage describes one prerendered document.
type WrittenPage struct {
	URL    string
	PageID registry.PageID
	Path   string

	// PageContextPath is the sidecar path, empty when none was written.
	PageContextPath string

	StatusCode int
}

// Report summarizes a run.
type Report struct {
	Pages    []WrittenPage
	Warnings []error
	Duration time.Duration
}

// Stats counts the work done by an orchestrator.
type Stats struct {
	HookCalls    int64
	Renders      int64
	FilesWritten int64
}

// Orchestrator prerenders every page of a pipeline.
type Orchestrator struct {
	pipeline *render.Pipeline
	loader   *loader.Loader
	registry *registry.Registry
	sink     output.Sink
	opts     Options
	logger   *slog.Logger

	hookCalls    atomic.Int64
	renders      atomic.Int64
	filesWritten atomic.Int64
}

// New creates an orchestrator writing to sink. A nil sink writes to
// Options.OutDir.
func New(p *render.Pipeline, sink output.Sink, opts Options) (*Orchestrator, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if sink == nil {
		dir := opts.OutDir
		if dir == "" {
			return nil, fmt.Errorf("prerender: no sink and no output directory")
		}
		if !filepath.IsAbs(dir) && opts.Root != "" {
			dir = filepath.Join(opts.Root, dir)
		}
		s, err := output.NewDirSink(dir)
		if err != nil {
			return nil, err
		}
		sink = s
	}
	return &Orchestrator{
		pipeline: p,
		loader:   p.Loader(),
		registry: p.Registry(),
		sink:     sink,
		opts:     opts,
		logger:   opts.Logger,
	}, nil
}

// Stats returns the orchestrator's counters.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		HookCalls:    o.hookCalls.Load(),
		Renders:      o.renders.Load(),
		FilesWritten: o.filesWritten.Load(),
	}
}

// page is a routable page and its hooks.
type page struct {
	id    registry.PageID
	hooks *loader.Hooks
}

// job is one document to render.
type job struct {
	url        string
	pageID     registry.PageID
	params     map[string]string
	initial    map[string]any
	skipAdd    bool
	notFound   bool
	sourceFile string
}

// done is a rendered job.
type done struct {
	job
	outcome *render.Outcome
	sidecar bool
}

// Run prerenders every page and writes the documents. Nothing is written
// when any page fails.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{}

	pages, err := o.loadPages(ctx, o.pipeline.Routable())
	if err != nil {
		return nil, err
	}

	entries, err := o.collect(ctx, pages)
	if err != nil {
		return nil, err
	}

	jobs, covered, err := o.resolve(ctx, mergeEntries(entries))
	if err != nil {
		return nil, err
	}

	static, warnings, err := o.uncovered(ctx, pages, covered)
	if err != nil {
		return nil, err
	}
	jobs = append(jobs, static...)
	report.Warnings = append(report.Warnings, warnings...)

	if !hasURL(jobs, NotFoundURL) && o.registry.ErrorPageID() != "" {
		jobs = append(jobs, job{url: NotFoundURL, pageID: o.registry.ErrorPageID(), notFound: true})
	}

	results, err := o.render(ctx, jobs)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		report.Warnings = append(report.Warnings, r.outcome.Warnings...)
	}

	report.Pages, err = o.write(ctx, results)
	if err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	o.logger.Info("prerender finished",
		"pages", len(report.Pages),
		"warnings", len(report.Warnings),
		"duration", report.Duration,
	)
	return report, nil
}

func (o *Orchestrator) group() *errgroup.Group {
	g := &errgroup.Group{}
	g.SetLimit(o.opts.Concurrency)
	return g
}

// loadPages loads the hooks of every page.
func (o *Orchestrator) loadPages(ctx context.Context, ids []registry.PageID) ([]page, error) {
	pages := make([]page, len(ids))
	errs := make([]error, len(ids))
	g := o.group()
	for i, id := range ids {
		g.Go(func() error {
			h, err := o.loader.Hooks(ctx, id)
			if err != nil {
				errs[i] = fmt.Errorf("page %s: %w", id, err)
				return nil
			}
			pages[i] = page{id: id, hooks: h}
			return nil
		})
	}
	_ = g.Wait()
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return pages, nil
}

// collect calls the prerender hooks. A hook shared by several pages
// through a default file is called once, for the first of them.
func (o *Orchestrator) collect(ctx context.Context, pages []page) ([]Entry, error) {
	var owners []page
	seen := make(map[string]bool)
	for _, p := range pages {
		h := p.hooks
		if h.DoNotPrerender || h.Prerender == nil || seen[h.PrerenderFile] {
			continue
		}
		seen[h.PrerenderFile] = true
		owners = append(owners, p)
	}

	perPage := make([][]Entry, len(owners))
	errs := make([]error, len(owners))
	g := o.group()
	for i, p := range owners {
		g.Go(func() error {
			file := p.hooks.PrerenderFile
			var result any
			err := hook.Call(loader.ExportPrerender, file, func() error {
				var err error
				result, err = p.hooks.Prerender(ctx)
				return err
			})
			o.hookCalls.Inc()
			if err != nil {
				errs[i] = err
				return nil
			}
			perPage[i], errs[i] = Normalize(result, file, p.id)
			return nil
		})
	}
	_ = g.Wait()
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	var entries []Entry
	for _, e := range perPage {
		entries = append(entries, e...)
	}
	return entries, nil
}

// resolve matches every merged URL to a page. It returns the render jobs
// and the pages they cover.
func (o *Orchestrator) resolve(ctx context.Context, urls []*merged) ([]job, map[registry.PageID]bool, error) {
	jobs := make([]job, len(urls))
	errs := make([]error, len(urls))
	routable := o.pipeline.Routable()
	g := o.group()
	for i, m := range urls {
		g.Go(func() error {
			file := m.sources[0].SourceFile
			res, err := o.pipeline.Resolver().Resolve(ctx, m.url, routable, m.pageContext, route.Strict())
			if err != nil {
				errs[i] = fmt.Errorf("prerender %s: %w", m.url, err)
				return nil
			}
			if res == nil {
				errs[i] = errors.New("E211").WithDetailf("%s", m.url).WithFile(file)
				return nil
			}
			jobs[i] = job{
				url:        m.url,
				pageID:     res.PageID,
				params:     res.Params,
				initial:    m.pageContext,
				skipAdd:    m.explicit,
				sourceFile: file,
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := errors.Join(errs...); err != nil {
		return nil, nil, err
	}

	covered := make(map[registry.PageID]bool, len(jobs))
	for _, j := range jobs {
		covered[j.pageID] = true
	}
	return jobs, covered, nil
}

// uncovered plans the pages no prerender hook produced a URL for.
func (o *Orchestrator) uncovered(ctx context.Context, pages []page, covered map[registry.PageID]bool) ([]job, []error, error) {
	var (
		jobs     []job
		warnings []error
		errs     []error
	)
	for _, p := range pages {
		if covered[p.id] || p.hooks.DoNotPrerender {
			continue
		}
		def, err := o.loader.RouteDefinition(ctx, p.id)
		if err != nil {
			errs = append(errs, fmt.Errorf("page %s: %w", p.id, err))
			continue
		}
		if path, ok := def.StaticPath(); ok {
			jobs = append(jobs, job{url: path, pageID: p.id})
			continue
		}
		if o.opts.Partial {
			continue
		}
		w := errors.New("W302").
			WithDetailf("page %s has route %s and no prerender hook returned a URL for it", p.id, def)
		if def.File != "" {
			w = w.WithFile(def.File)
		}
		o.logger.Warn("page not prerendered", "page_id", string(p.id), "route", def.String(), "code", "W302")
		warnings = append(warnings, w)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, nil, err
	}
	return jobs, warnings, nil
}

// render runs the jobs concurrently. Results keep the order of jobs.
func (o *Orchestrator) render(ctx context.Context, jobs []job) ([]done, error) {
	results := make([]done, len(jobs))
	errs := make([]error, len(jobs))
	g := o.group()
	for i, j := range jobs {
		g.Go(func() error {
			results[i], errs[i] = o.renderJob(ctx, j)
			return nil
		})
	}
	_ = g.Wait()
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return results, nil
}

func (o *Orchestrator) renderJob(ctx context.Context, j job) (done, error) {
	opts := []render.Option{render.FailFast(), render.Strict()}
	if j.skipAdd {
		opts = append(opts, render.SkipAddPageContext())
	}

	var (
		out *render.Outcome
		err error
	)
	if j.notFound {
		out, err = o.pipeline.RenderNotFound(ctx, j.url, nil, opts...)
	} else {
		out, err = o.pipeline.RenderPage(ctx, j.url, j.pageID, j.params, j.initial, opts...)
	}
	o.renders.Inc()
	if err != nil {
		return done{}, fmt.Errorf("prerender %s: %w", j.url, err)
	}
	if out.NothingRendered || out.Result == nil {
		return done{}, fmt.Errorf("prerender %s: nothing rendered", j.url)
	}
	if out.Result.Kind != render.ResultDocument {
		verr := errors.New("E212").WithDetailf("%s rendered a %s", j.url, out.Result.Kind)
		if j.sourceFile != "" {
			verr = verr.WithFile(j.sourceFile)
		}
		return done{}, verr
	}

	h, err := o.loader.Hooks(ctx, out.PageID)
	if err != nil {
		return done{}, err
	}
	return done{job: j, outcome: out, sidecar: h.ClientRouting && !j.notFound}, nil
}

// write stores the documents one at a time. The first document for an
// output path wins.
func (o *Orchestrator) write(ctx context.Context, results []done) ([]WrittenPage, error) {
	var pages []WrittenPage
	written := make(map[string]bool)
	for _, r := range results {
		url := pathOf(r.url)
		docPath := output.DocumentPath(url, r.notFound || strings.TrimSuffix(url, "/") == NotFoundURL)
		if written[docPath] {
			o.logger.Debug("duplicate output path skipped", "url", r.url, "path", docPath)
			continue
		}
		written[docPath] = true

		if err := o.sink.Write(ctx, docPath, []byte(r.outcome.Result.Markup)); err != nil {
			return nil, fmt.Errorf("prerender %s: %w", r.url, err)
		}
		o.filesWritten.Inc()

		wp := WrittenPage{
			URL:        r.url,
			PageID:     r.outcome.PageID,
			Path:       docPath,
			StatusCode: r.outcome.StatusCode,
		}
		if r.sidecar {
			wp.PageContextPath = output.PageContextPath(url)
			if err := o.sink.Write(ctx, wp.PageContextPath, []byte(r.outcome.Result.PageContextJSON)); err != nil {
				return nil, fmt.Errorf("prerender %s: %w", r.url, err)
			}
			o.filesWritten.Inc()
		}

		o.logger.Info("page prerendered", "url", r.url, "page_id", string(wp.PageID), "path", docPath)
		pages = append(pages, wp)
	}
	return pages, nil
}

// pathOf strips the query and fragment of url.
func pathOf(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	if url == "" {
		return "/"
	}
	return url
}

func hasURL(jobs []job, url string) bool {
	for _, j := range jobs {
		if strings.TrimSuffix(pathOf(j.url), "/") == url {
			return true
		}
	}
	return false
}

// Run is a shortcut for New followed by Orchestrator.Run.
func Run(ctx context.Context, p *render.Pipeline, sink output.Sink, opts Options) (*Report, error) {
	o, err := New(p, sink, opts)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx)
}
