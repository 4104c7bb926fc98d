package route

import (
	"strings"

	"github.com/vango-dev/vps/internal/errors"
	"github.com/vango-dev/vps/pkg/routepath"
)

// Pattern is a compiled Route String.
type Pattern struct {
	raw      string
	segments []segment
}

type segment struct {
	literal string
	param   string
}

// Compile parses a Route String such as "/movie/:movieId".
// Invalid strings yield an E213 usage error.
func Compile(s string) (*Pattern, error) {
	invalid := func(detail string) error {
		return errors.New("E213").WithDetailf("%q: %s", s, detail)
	}

	if !strings.HasPrefix(s, "/") {
		return nil, invalid("a route string must start with /")
	}

	p := &Pattern{raw: s}
	trimmed := strings.TrimSuffix(s, "/")
	if trimmed == "" {
		return p, nil
	}

	seen := make(map[string]bool)
	for _, part := range strings.Split(trimmed[1:], "/") {
		switch {
		case part == "":
			return nil, invalid("empty path segment")
		case strings.Contains(part, "*"):
			return nil, invalid("wildcards are not supported, use a route function")
		case part[0] == ':':
			name := part[1:]
			if !isParamName(name) {
				return nil, invalid("invalid parameter name " + quote(name))
			}
			if seen[name] {
				return nil, invalid("duplicate parameter " + quote(name))
			}
			seen[name] = true
			p.segments = append(p.segments, segment{param: name})
		default:
			p.segments = append(p.segments, segment{literal: part})
		}
	}
	return p, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(s string) *Pattern {
	p, err := Compile(s)
	if err != nil {
		panic(err)
	}
	return p
}

func isParamName(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

func quote(s string) string { return `"` + s + `"` }

// String returns the Route String the pattern was compiled from.
func (p *Pattern) String() string { return p.raw }

// Params returns the parameter names in order of appearance.
func (p *Pattern) Params() []string {
	var names []string
	for _, s := range p.segments {
		if s.param != "" {
			names = append(names, s.param)
		}
	}
	return names
}

// IsLiteral reports whether the pattern has no parameters.
func (p *Pattern) IsLiteral() bool {
	return len(p.Params()) == 0
}

// Match matches a canonical pathname. Parameter values are
// percent-decoded; a segment containing an encoded slash never matches.
func (p *Pattern) Match(pathname string) (map[string]string, bool) {
	parts := routepath.Segments(pathname)
	if len(parts) != len(p.segments) {
		return nil, false
	}

	params := make(map[string]string, len(p.segments))
	for i, seg := range p.segments {
		value, err := routepath.DecodeSegment(parts[i])
		if err != nil || value == "" {
			return nil, false
		}
		if seg.param == "" {
			if value != seg.literal {
				return nil, false
			}
			continue
		}
		params[seg.param] = value
	}
	return params, true
}
