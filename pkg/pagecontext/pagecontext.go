package pagecontext

import (
	"strings"

	"github.com/vango-dev/vps/internal/errors"
)

// PageContext is the per-invocation context object handed to hooks.
type PageContext map[string]any

// URL fields present in every page context and every client context.
const (
	KeyURLPathname = "urlPathname"
	KeyURLFull     = "urlFull"
	KeyURLParsed   = "urlParsed"
)

// Well-known keys set by the render pipeline.
const (
	KeyRouteParams = "routeParams"
	KeyPageProps   = "pageProps"
	KeyIs404       = "is404"
	KeyError       = "error"

	// KeyRedirectTo holds a redirect raised by addPageContext. The render
	// hook decides what to do with it.
	KeyRedirectTo = "redirectTo"
)

// Accumulate merges sources into a new PageContext. Keys of later sources
// override keys of earlier ones; values are not merged deeply. Nil sources
// are skipped.
func Accumulate(sources ...map[string]any) PageContext {
	size := 0
	for _, s := range sources {
		size += len(s)
	}
	out := make(PageContext, size)
	for _, s := range sources {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}

// Clone returns a shallow copy.
func (pc PageContext) Clone() PageContext {
	return Accumulate(pc)
}

// With returns a copy of pc with the given sources accumulated on top.
func (pc PageContext) With(sources ...map[string]any) PageContext {
	return Accumulate(append([]map[string]any{pc}, sources...)...)
}

// Select returns the client context for a passToClient list. Entries are
// plain keys ("user") or one-level paths ("user.id"); a path keeps only
// the named field of a map value. Deeper paths and wildcards are not
// supported and yield E206. Missing keys are skipped. The URL fields are
// always included.
func Select(pc PageContext, passToClient []string) (PageContext, error) {
	out := PageContext{}
	for _, key := range []string{KeyURLPathname, KeyURLFull, KeyURLParsed} {
		if v, ok := pc[key]; ok {
			out[key] = v
		}
	}

	partial := make(map[string]bool)
	var errs []error

	for _, entry := range passToClient {
		if entry == "" || strings.Contains(entry, "*") || strings.Count(entry, ".") > 1 {
			errs = append(errs, errors.New("E206").WithDetailf("%q", entry))
			continue
		}

		parent, child, nested := strings.Cut(entry, ".")
		if !nested {
			if v, ok := pc[entry]; ok {
				out[entry] = v
				delete(partial, entry)
			}
			continue
		}
		if parent == "" || child == "" {
			errs = append(errs, errors.New("E206").WithDetailf("%q", entry))
			continue
		}

		src, ok := asMap(pc[parent])
		if !ok {
			continue
		}
		v, ok := src[child]
		if !ok {
			continue
		}

		if _, whole := out[parent]; whole && !partial[parent] {
			continue
		}
		dst, _ := out[parent].(map[string]any)
		if dst == nil {
			dst = make(map[string]any)
			out[parent] = dst
			partial[parent] = true
		}
		dst[child] = v
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case PageContext:
		return m, true
	}
	return nil, false
}
