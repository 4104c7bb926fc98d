package registry

import (
	"path"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vango-dev/vps/internal/errors"
)

// PageID identifies a page's file group, e.g. "/pages/movie/index".
type PageID string

// Kind is the kind of a page file.
type Kind string

const (
	// KindView is the page's view module (.page).
	KindView Kind = "view"
	// KindRoute holds the page's explicit route (.page.route).
	KindRoute Kind = "route"
	// KindServer holds the server hooks (.page.server).
	KindServer Kind = "server"
	// KindClient is the client entry (.page.client).
	KindClient Kind = "client"
)

// SupportsDefault reports whether files of this kind fall back to an
// ancestor _default file.
func (k Kind) SupportsDefault() bool {
	return k == KindServer || k == KindClient
}

const (
	defaultName   = "_default"
	errorPageName = "_error"
)

// Page is the file group of one page.
type Page struct {
	ID PageID

	// Files maps kinds to the page's own files (no defaults).
	Files map[Kind]string
}

// Registry is the immutable manifest of pages and default files.
// It is safe for concurrent use.
type Registry struct {
	pages     map[PageID]*Page
	order     []PageID
	defaults  map[Kind]map[string]string // kind -> lower-cased dir -> file
	errorPage PageID
	fsRoutes  map[PageID]string
}

var lower = cases.Lower(language.Und)

// normalize returns the case-normalized form of a page path.
func normalize(p string) string {
	return lower.String(p)
}

// New builds a registry from page file paths. Paths use forward slashes;
// a missing leading slash is added. Files without ".page" in their name are
// ignored.
func New(files []string) (*Registry, error) {
	r := &Registry{
		pages:    make(map[PageID]*Page),
		defaults: make(map[Kind]map[string]string),
		fsRoutes: make(map[PageID]string),
	}

	var errs []error
	for _, file := range files {
		if err := r.add(file); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	for id := range r.pages {
		r.order = append(r.order, id)
	}
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })

	for _, id := range r.order {
		if path.Base(string(id)) == errorPageName && r.errorPage == "" {
			r.errorPage = id
		}
	}

	r.computeFilesystemRoutes()
	return r, nil
}

// add classifies one file.
func (r *Registry) add(file string) error {
	file = strings.ReplaceAll(file, "\\", "/")
	if !strings.HasPrefix(file, "/") {
		file = "/" + file
	}

	name, kind, ok, err := parseFileName(path.Base(file))
	if err != nil {
		return errors.New("E201").WithDetail(err.Error()).WithFile(file)
	}
	if !ok {
		return nil
	}

	dir := path.Dir(file)

	if name == defaultName {
		if !kind.SupportsDefault() {
			return errors.New("E201").
				WithDetailf("_default files can only be .page.server or .page.client files, got a %s file", kind).
				WithFile(file)
		}
		if r.defaults[kind] == nil {
			r.defaults[kind] = make(map[string]string)
		}
		key := normalize(dir)
		if prev, exists := r.defaults[kind][key]; exists && prev != file {
			return errors.New("E214").
				WithDetailf("%s and %s are both _default %s files of the same directory", prev, file, kind).
				WithFile(file)
		}
		r.defaults[kind][key] = file
		return nil
	}

	id := PageID(normalize(path.Join(dir, name)))
	page := r.pages[id]
	if page == nil {
		page = &Page{ID: id, Files: make(map[Kind]string)}
		r.pages[id] = page
	}
	if prev, exists := page.Files[kind]; exists && prev != file {
		return errors.New("E214").
			WithDetailf("%s and %s both define the %s file of page %s", prev, file, kind, id).
			WithFile(file)
	}
	page.Files[kind] = file
	return nil
}

// parseFileName splits "index.page.server.go" into ("index", KindServer).
// ok is false for files that are not page files.
func parseFileName(base string) (name string, kind Kind, ok bool, err error) {
	idx := strings.Index(base, ".page")
	if idx <= 0 {
		return "", "", false, nil
	}
	rest := base[idx+len(".page"):]
	if rest != "" && rest[0] != '.' {
		// e.g. "index.pages.go"
		return "", "", false, nil
	}
	name = base[:idx]

	parts := strings.Split(strings.TrimPrefix(rest, "."), ".")
	switch {
	case rest == "" || len(parts) == 1:
		return name, KindView, true, nil
	case len(parts) == 2:
		switch Kind(parts[0]) {
		case KindRoute, KindServer, KindClient:
			return name, Kind(parts[0]), true, nil
		}
	}
	return "", "", false, &fileNameError{base: base}
}

type fileNameError struct{ base string }

func (e *fileNameError) Error() string {
	return `unrecognized page file name "` + e.base + `" (expected NAME.page[.route|.server|.client].EXT)`
}

// PageIDs returns all page ids in deterministic (sorted) order, including
// the error page.
func (r *Registry) PageIDs() []PageID {
	out := make([]PageID, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of pages.
func (r *Registry) Len() int {
	return len(r.order)
}

// Has reports whether id is a registered page.
func (r *Registry) Has(id PageID) bool {
	_, ok := r.pages[id]
	return ok
}

// Page returns the page with the given id.
func (r *Registry) Page(id PageID) (*Page, bool) {
	p, ok := r.pages[id]
	return p, ok
}

// ErrorPageID returns the error page id, or "" when there is none.
func (r *Registry) ErrorPageID() PageID {
	return r.errorPage
}

// IsErrorPage reports whether id is the error page.
func (r *Registry) IsErrorPage(id PageID) bool {
	return r.errorPage != "" && id == r.errorPage
}

// File returns the file of the given kind for a page. For kinds that
// support defaults, the nearest ancestor _default file is returned when the
// page has no file of its own. ok is false when no file exists.
func (r *Registry) File(id PageID, kind Kind) (file string, ok bool) {
	if page, exists := r.pages[id]; exists {
		if f, has := page.Files[kind]; has {
			return f, true
		}
	}
	if kind.SupportsDefault() {
		return r.DefaultFile(id, kind)
	}
	return "", false
}

// DefaultFile returns the nearest _default file of the given kind found by
// walking the ancestor directories of id.
func (r *Registry) DefaultFile(id PageID, kind Kind) (file string, ok bool) {
	byDir := r.defaults[kind]
	if len(byDir) == 0 {
		return "", false
	}
	dir := path.Dir(string(id))
	for {
		if f, has := byDir[dir]; has {
			return f, true
		}
		if dir == "/" || dir == "." {
			return "", false
		}
		dir = path.Dir(dir)
	}
}

// FilesystemRoute returns the route derived from a page id.
func (r *Registry) FilesystemRoute(id PageID) string {
	return r.fsRoutes[id]
}

// computeFilesystemRoutes strips the directory prefix shared by all pages
// and collapses index segments.
func (r *Registry) computeFilesystemRoutes() {
	var dirs [][]string
	for _, id := range r.order {
		if r.IsErrorPage(id) {
			continue
		}
		dirs = append(dirs, splitSegments(path.Dir(string(id))))
	}
	common := commonPrefix(dirs)

	for _, id := range r.order {
		segs := splitSegments(string(id))
		if len(segs) > len(common) && !r.IsErrorPage(id) {
			segs = segs[len(common):]
		}
		var kept []string
		for _, s := range segs {
			if s == "index" {
				continue
			}
			kept = append(kept, s)
		}
		r.fsRoutes[id] = "/" + strings.Join(kept, "/")
	}
}

func splitSegments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" || p == "." {
		return nil
	}
	return strings.Split(p, "/")
}

func commonPrefix(all [][]string) []string {
	if len(all) == 0 {
		return nil
	}
	prefix := all[0]
	for _, segs := range all[1:] {
		n := 0
		for n < len(prefix) && n < len(segs) && prefix[n] == segs[n] {
			n++
		}
		prefix = prefix[:n]
	}
	return prefix
}
