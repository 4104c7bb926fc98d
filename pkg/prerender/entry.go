package prerender

import (
	"reflect"
	"strings"

	"github.com/vango-dev/vps/internal/errors"
	"github.com/vango-dev/vps/pkg/pagecontext"
	"github.com/vango-dev/vps/pkg/registry"
)

// Item is a typed prerender hook result.
type Item struct {
	URL string

	// PageContext is the context to render URL with. Nil means omitted,
	// which is not the same as an empty map.
	PageContext map[string]any
}

// Entry is one URL contributed by a prerender hook.
type Entry struct {
	URL            string
	PageContext    map[string]any
	HasPageContext bool

	// SourceFile is the file defining the hook, for diagnostics.
	SourceFile string

	// PageID is the page the hook was called for.
	PageID registry.PageID
}

// Normalize converts a prerender hook result into entries. Every problem
// found is reported: E208 for URLs not starting with "/", E209 for
// unknown keys and E210 for values of the wrong shape.
func Normalize(v any, file string, id registry.PageID) ([]Entry, error) {
	n := normalizer{file: file, id: id}
	n.value(v, true)
	if err := errors.Join(n.errs...); err != nil {
		return nil, err
	}
	return n.entries, nil
}

type normalizer struct {
	file    string
	id      registry.PageID
	entries []Entry
	errs    []error
}

func (n *normalizer) fail(code, format string, args ...any) {
	n.errs = append(n.errs, errors.New(code).WithDetailf("prerender hook: "+format, args...).WithFile(n.file))
}

func (n *normalizer) value(v any, top bool) {
	switch x := v.(type) {
	case nil:
		if !top {
			n.fail("E210", "unexpected nil entry")
		}
	case string:
		n.add(x, nil, false)
	case Item:
		n.add(x.URL, x.PageContext, x.PageContext != nil)
	case *Item:
		if x == nil {
			n.fail("E210", "unexpected nil entry")
			return
		}
		n.add(x.URL, x.PageContext, x.PageContext != nil)
	case map[string]any:
		n.object(x)
	case pagecontext.PageContext:
		n.object(x)
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			n.fail("E210", "unexpected %T (want a URL, an Item, a map or a slice of those)", v)
			return
		}
		if !top {
			n.fail("E210", "nested slices are not allowed")
			return
		}
		for i := 0; i < rv.Len(); i++ {
			n.value(rv.Index(i).Interface(), false)
		}
	}
}

func (n *normalizer) object(m map[string]any) {
	for key := range m {
		if key != "url" && key != "pageContext" {
			n.fail("E209", "unknown key %q (allowed: url, pageContext)", key)
			return
		}
	}

	url, ok := m["url"].(string)
	if !ok {
		n.fail("E210", "url must be a string, got %T", m["url"])
		return
	}

	raw, present := m["pageContext"]
	if !present || raw == nil {
		n.add(url, nil, false)
		return
	}
	switch pc := raw.(type) {
	case map[string]any:
		n.add(url, pc, true)
	case pagecontext.PageContext:
		n.add(url, pc, true)
	default:
		n.fail("E210", "pageContext of %s must be a map, got %T", url, raw)
	}
}

func (n *normalizer) add(url string, pc map[string]any, explicit bool) {
	if !strings.HasPrefix(url, "/") {
		n.fail("E208", "%q", url)
		return
	}
	n.entries = append(n.entries, Entry{
		URL:            url,
		PageContext:    pc,
		HasPageContext: explicit,
		SourceFile:     n.file,
		PageID:         n.id,
	})
}

// merged is the union of the entries for one URL.
type merged struct {
	url         string
	pageContext pagecontext.PageContext
	explicit    bool
	sources     []Entry
}

// mergeEntries groups entries by URL, keeping first-seen order. Later
// page contexts override earlier ones key by key.
func mergeEntries(entries []Entry) []*merged {
	var order []*merged
	byURL := make(map[string]*merged)
	for _, e := range entries {
		m := byURL[e.URL]
		if m == nil {
			m = &merged{url: e.URL, pageContext: pagecontext.PageContext{}}
			byURL[e.URL] = m
			order = append(order, m)
		}
		if e.HasPageContext {
			m.pageContext = m.pageContext.With(e.PageContext)
			m.explicit = true
		}
		m.sources = append(m.sources, e)
	}
	return order
}
