package render

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// HTML is markup returned by a render hook.
type HTML string

// Document is markup returned by a render hook. It is equivalent to HTML.
type Document struct {
	HTML string
}

// Redirect is a redirect returned by a render or addPageContext hook.
type Redirect struct {
	URL string

	// Status defaults to 302 Found.
	Status int
}

// RedirectURL implements Redirector.
func (r Redirect) RedirectURL() string { return r.URL }

// RedirectStatus returns the redirect's status code.
func (r Redirect) RedirectStatus() int {
	if r.Status == 0 {
		return http.StatusFound
	}
	return r.Status
}

// Error lets hooks return a Redirect as an error.
func (r Redirect) Error() string { return "redirect to " + r.URL }

// Redirector is implemented by hook results and errors that redirect.
type Redirector interface {
	RedirectURL() string
}

// ResultKind tags a Result.
type ResultKind int

const (
	// ResultDocument is an HTML document.
	ResultDocument ResultKind = iota
	// ResultRedirect is a redirect.
	ResultRedirect
	// ResultCustom is any other value, passed through untouched.
	ResultCustom
)

func (k ResultKind) String() string {
	switch k {
	case ResultDocument:
		return "document"
	case ResultRedirect:
		return "redirect"
	case ResultCustom:
		return "custom"
	default:
		return fmt.Sprintf("ResultKind(%d)", int(k))
	}
}

// Result is the classified outcome of a render hook.
type Result struct {
	Kind ResultKind

	// Markup is the final document of a ResultDocument, with the client
	// context and entry scripts injected.
	Markup string

	// PageContextJSON is the serialized client context of a
	// ResultDocument.
	PageContextJSON string

	// Location and Status describe a ResultRedirect.
	Location string
	Status   int

	// Value is the value the hook returned, untouched.
	Value any
}

// markupOf extracts markup from document-like values.
func markupOf(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case HTML:
		return string(x), true
	case Document:
		return x.HTML, true
	case *Document:
		if x != nil {
			return x.HTML, true
		}
	}
	return "", false
}

// redirectOf extracts a redirect from a value or an error chain.
func redirectOf(v any) (*Result, bool) {
	var r Redirector
	switch x := v.(type) {
	case Redirector:
		r = x
	case error:
		if !errors.As(x, &r) {
			return nil, false
		}
	default:
		return nil, false
	}

	status := http.StatusFound
	if s, ok := r.(interface{ RedirectStatus() int }); ok {
		status = s.RedirectStatus()
	}
	return &Result{Kind: ResultRedirect, Location: r.RedirectURL(), Status: status, Value: v}, true
}

// PageContextScriptID is the id of the script element carrying the
// serialized client context.
const PageContextScriptID = "vps_pageContext"

// injectScripts inserts the client context and the client entry before
// </body>, or appends them when the markup has no body end tag.
func injectScripts(markup, pageContextJSON, clientEntry string) string {
	var b strings.Builder
	b.WriteString(`<script id="` + PageContextScriptID + `" type="application/json">`)
	b.WriteString(pageContextJSON)
	b.WriteString(`</script>`)
	if clientEntry != "" {
		b.WriteString(`<script type="module" src="`)
		b.WriteString(escapeAttr(clientEntry))
		b.WriteString(`" async></script>`)
	}
	scripts := b.String()

	if i := lastIndexFold(markup, "</body>"); i >= 0 {
		return markup[:i] + scripts + markup[i:]
	}
	return markup + scripts
}

// lastIndexFold is strings.LastIndex with ASCII case folding.
func lastIndexFold(s, substr string) int {
	for i := len(s) - len(substr); i >= 0; i-- {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}
