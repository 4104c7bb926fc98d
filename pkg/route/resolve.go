package route

import (
	"context"
	"log/slog"
	"strings"

	"github.com/vango-dev/vps/internal/errors"
	"github.com/vango-dev/vps/pkg/pagecontext"
	"github.com/vango-dev/vps/pkg/registry"
	"github.com/vango-dev/vps/pkg/routepath"
)

// DefinitionSource provides the route definition of a page.
type DefinitionSource interface {
	RouteDefinition(ctx context.Context, id registry.PageID) (Definition, error)
}

// Resolution is a successful route resolution.
type Resolution struct {
	PageID   registry.PageID
	Params   map[string]string
	Priority float64

	// ContextAddendum holds the page context fields contributed by
	// routing: {"routeParams": Params}.
	ContextAddendum map[string]any

	// Warning is set when the match was ambiguous and the first page in
	// registry order was kept.
	Warning error
}

// Resolver resolves URLs to pages.
type Resolver struct {
	source DefinitionSource
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for ambiguity warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver reading definitions from source.
func NewResolver(source DefinitionSource, opts ...Option) *Resolver {
	r := &Resolver{source: source}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

type resolveOptions struct {
	strict bool
}

// ResolveOption adjusts a single resolution.
type ResolveOption func(*resolveOptions)

// Strict makes ambiguous matches fail with E205 instead of logging W301.
func Strict() ResolveOption {
	return func(o *resolveOptions) { o.strict = true }
}

// Resolve finds the page rendering rawURL among pageIDs. It returns nil
// without error when no page matches, including when rawURL is not a
// valid URL.
func (r *Resolver) Resolve(ctx context.Context, rawURL string, pageIDs []registry.PageID, initial map[string]any, opts ...ResolveOption) (*Resolution, error) {
	u, err := routepath.Parse(rawURL)
	if err != nil {
		r.logger.Debug("unroutable url", "url", rawURL, "error", err)
		return nil, nil
	}
	return r.ResolveURL(ctx, u, pageIDs, initial, opts...)
}

type candidate struct {
	id    registry.PageID
	kind  DefinitionKind
	match Match
}

// ResolveURL is Resolve for an already parsed URL.
func (r *Resolver) ResolveURL(ctx context.Context, u *routepath.URL, pageIDs []registry.PageID, initial map[string]any, opts ...ResolveOption) (*Resolution, error) {
	var o resolveOptions
	for _, opt := range opts {
		opt(&o)
	}

	pageContext := pagecontext.Accumulate(u.Fields(), initial)

	var candidates []candidate
	for _, id := range pageIDs {
		def, err := r.source.RouteDefinition(ctx, id)
		if err != nil {
			return nil, err
		}
		m, err := def.Match(ctx, u, pageContext)
		if err != nil {
			return nil, err
		}
		if m.Matched {
			candidates = append(candidates, candidate{id: id, kind: def.Kind, match: m})
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	winners := []candidate{candidates[0]}
	for _, c := range candidates[1:] {
		switch cmp := compare(c, winners[0]); {
		case cmp > 0:
			winners = []candidate{c}
		case cmp == 0:
			winners = append(winners, c)
		}
	}

	best := winners[0]
	res := &Resolution{
		PageID:          best.id,
		Params:          best.match.Params,
		Priority:        best.match.Priority,
		ContextAddendum: map[string]any{"routeParams": best.match.Params},
	}

	if len(winners) > 1 {
		ids := make([]string, len(winners))
		for i, w := range winners {
			ids[i] = string(w.id)
		}
		detail := "URL " + u.Pathname + " is matched by " + strings.Join(ids, ", ")
		if o.strict {
			return nil, errors.New("E205").WithDetail(detail)
		}
		res.Warning = errors.New("W301").WithDetailf("%s; using %s", detail, best.id)
		r.logger.Warn("ambiguous route",
			"url", u.Full,
			"page_id", string(best.id),
			"candidates", ids,
		)
	}
	return res, nil
}

// compare orders two matches: priority first, then definition kind.
func compare(a, b candidate) int {
	switch {
	case a.match.Priority > b.match.Priority:
		return 1
	case a.match.Priority < b.match.Priority:
		return -1
	case a.kind > b.kind:
		return 1
	case a.kind < b.kind:
		return -1
	}
	return 0
}
