package assets

import "strings"

// Resolver maps a page client file to the URL of its built script.
type Resolver interface {
	Asset(source string) string
}

type manifestResolver struct {
	manifest *Manifest
	prefix   string
}

// NewResolver creates a Resolver from a Manifest. The prefix (for example
// "/" or "https://cdn.example.com/") is prepended to every resolved path.
func NewResolver(m *Manifest, prefix string) Resolver {
	return &manifestResolver{
		manifest: m,
		prefix:   withSlash(prefix),
	}
}

func (r *manifestResolver) Asset(source string) string {
	return r.prefix + r.manifest.Resolve(source)
}

type passthrough struct {
	prefix string
}

// NewPassthroughResolver creates a resolver that only applies the prefix.
// It is used when no manifest was built, e.g. while developing.
func NewPassthroughResolver(prefix string) Resolver {
	return &passthrough{prefix: withSlash(prefix)}
}

func (p *passthrough) Asset(source string) string {
	return p.prefix + normalizeKey(source)
}

func withSlash(prefix string) string {
	if prefix == "" {
		return "/"
	}
	if !strings.HasSuffix(prefix, "/") {
		return prefix + "/"
	}
	return prefix
}
