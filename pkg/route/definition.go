package route

import (
	"context"
	"fmt"
	"math"
	"reflect"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vango-dev/vps/internal/errors"
	"github.com/vango-dev/vps/internal/hook"
	"github.com/vango-dev/vps/pkg/routepath"
)

// DefinitionKind tags a Definition.
type DefinitionKind int

const (
	// Filesystem routes are derived from the page id.
	Filesystem DefinitionKind = iota
	// String routes come from a Route String.
	String
	// Func routes come from a route function.
	Func
)

func (k DefinitionKind) String() string {
	switch k {
	case Filesystem:
		return "filesystem"
	case String:
		return "string"
	case Func:
		return "function"
	default:
		return fmt.Sprintf("DefinitionKind(%d)", int(k))
	}
}

// RouteArgs is passed to a route function.
type RouteArgs struct {
	// URL is the URL being resolved, as received.
	URL string

	// Pathname is the canonical pathname of URL.
	Pathname string

	// PageContext holds the URL fields and the caller's initial context.
	PageContext map[string]any
}

// RouteFunc decides whether a page matches a URL. It returns false or nil
// for no match, true for a match at priority 0, a FuncResult, or a
// map with the keys "match" and "routeParams".
type RouteFunc func(ctx context.Context, args RouteArgs) (any, error)

// FuncResult is the typed result of a route function.
type FuncResult struct {
	// Match is a bool or a number. A number is the match priority.
	Match any

	Params map[string]string
}

// Match is the outcome of matching one definition against a URL.
type Match struct {
	Matched  bool
	Priority float64
	Params   map[string]string
}

// Definition is the route of one page.
type Definition struct {
	Kind DefinitionKind

	// Path is the derived route of a Filesystem definition.
	Path string

	// Pattern is the compiled Route String of a String definition.
	Pattern *Pattern

	// Func is the route function of a Func definition.
	Func RouteFunc

	// File is the source file of an explicit definition.
	File string
}

// FilesystemDefinition returns the implicit definition for a derived path.
func FilesystemDefinition(path string) Definition {
	return Definition{Kind: Filesystem, Path: path}
}

// StringDefinition compiles a Route String.
func StringDefinition(pattern, file string) (Definition, error) {
	p, err := Compile(pattern)
	if err != nil {
		if ve, ok := err.(*errors.VPSError); ok {
			return Definition{}, ve.WithFile(file)
		}
		return Definition{}, err
	}
	return Definition{Kind: String, Pattern: p, File: file}, nil
}

// FuncDefinition wraps a route function.
func FuncDefinition(fn RouteFunc, file string) Definition {
	return Definition{Kind: Func, Func: fn, File: file}
}

var routeFuncType = reflect.TypeOf(RouteFunc(nil))

// FromExport converts the default export of a .page.route file into a
// Definition. The export must be a Route String or a route function.
func FromExport(v any, file string) (Definition, error) {
	switch x := v.(type) {
	case string:
		return StringDefinition(x, file)
	case RouteFunc:
		return FuncDefinition(x, file), nil
	case nil:
		return Definition{}, errors.New("E204").
			WithDetail("the route file has no default export").
			WithFile(file)
	}

	rv := reflect.ValueOf(v)
	if rv.Type().ConvertibleTo(routeFuncType) {
		return FuncDefinition(rv.Convert(routeFuncType).Interface().(RouteFunc), file), nil
	}
	return Definition{}, errors.New("E204").
		WithDetailf("the default export of a route file must be a string or a route function, got %T", v).
		WithFile(file)
}

// StaticPath returns the URL of a definition that matches exactly one
// URL: a filesystem route or a Route String without parameters.
func (d Definition) StaticPath() (string, bool) {
	switch d.Kind {
	case Filesystem:
		return d.Path, true
	case String:
		if d.Pattern.IsLiteral() {
			path, err := routepath.CanonicalizePath(d.Pattern.String())
			if err != nil {
				return "", false
			}
			return path, true
		}
	}
	return "", false
}

// String describes the definition for listings.
func (d Definition) String() string {
	switch d.Kind {
	case Filesystem:
		return d.Path
	case String:
		return d.Pattern.String()
	default:
		return "<route function>"
	}
}

var lower = cases.Lower(language.Und)

// Match matches the definition against a parsed URL. pageContext is only
// consulted by route functions.
func (d Definition) Match(ctx context.Context, u *routepath.URL, pageContext map[string]any) (Match, error) {
	switch d.Kind {
	case Filesystem:
		if lower.String(u.Pathname) == d.Path {
			return Match{Matched: true, Params: map[string]string{}}, nil
		}
		return Match{}, nil

	case String:
		params, ok := d.Pattern.Match(u.Pathname)
		if !ok {
			return Match{}, nil
		}
		return Match{Matched: true, Params: params}, nil

	case Func:
		var result any
		err := hook.Call("route function", d.File, func() error {
			var err error
			result, err = d.Func(ctx, RouteArgs{URL: u.Full, Pathname: u.Pathname, PageContext: pageContext})
			return err
		})
		if err != nil {
			return Match{}, err
		}
		return parseFuncResult(result, d.File)
	}
	return Match{}, fmt.Errorf("route: unknown definition kind %v", d.Kind)
}

// parseFuncResult validates and normalizes a route function's result.
func parseFuncResult(v any, file string) (Match, error) {
	invalid := func(format string, args ...any) error {
		return errors.New("E210").WithDetailf("route function: "+format, args...).WithFile(file)
	}

	switch x := v.(type) {
	case nil:
		return Match{}, nil
	case bool:
		return Match{Matched: x, Params: map[string]string{}}, nil
	case FuncResult:
		return matchFrom(x.Match, x.Params, invalid)
	case *FuncResult:
		if x == nil {
			return Match{}, nil
		}
		return matchFrom(x.Match, x.Params, invalid)
	case map[string]any:
		for key := range x {
			if key != "match" && key != "routeParams" {
				return Match{}, errors.New("E209").
					WithDetailf("route function returned unknown key %q (allowed: match, routeParams)", key).
					WithFile(file)
			}
		}
		m, ok := x["match"]
		if !ok {
			return Match{}, invalid("result has no match key")
		}
		params, err := toParams(x["routeParams"])
		if err != nil {
			return Match{}, invalid("%v", err)
		}
		return matchFrom(m, params, invalid)
	}
	return Match{}, invalid("unexpected result of type %T (want false, a FuncResult or a map)", v)
}

func matchFrom(m any, params map[string]string, invalid func(string, ...any) error) (Match, error) {
	if params == nil {
		params = map[string]string{}
	}
	switch x := m.(type) {
	case bool:
		if !x {
			return Match{}, nil
		}
		return Match{Matched: true, Params: params}, nil
	case nil:
		return Match{}, invalid("match is missing")
	}

	priority, ok := toFloat(m)
	if !ok {
		return Match{}, invalid("match must be a bool or a number, got %T", m)
	}
	if math.IsNaN(priority) {
		return Match{}, invalid("match must not be NaN")
	}
	return Match{Matched: true, Priority: priority, Params: params}, nil
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func toParams(v any) (map[string]string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case map[string]string:
		return x, nil
	case map[string]any:
		out := make(map[string]string, len(x))
		for k, val := range x {
			s, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("routeParams.%s must be a string, got %T", k, val)
			}
			out[k] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("routeParams must be a map of strings, got %T", v)
}
