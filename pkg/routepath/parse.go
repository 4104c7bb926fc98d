package routepath

import (
	"net/url"
	"strings"
)

// URL is a parsed request URL.
type URL struct {
	// Full is the URL as received (origin, path, query and hash).
	Full string

	// Origin is "scheme://host" for absolute URLs, "" otherwise.
	Origin string

	// Pathname is the canonical path used for routing.
	Pathname string

	// PathnameOriginal is the path as received.
	PathnameOriginal string

	// Search maps each query key to its last value.
	Search map[string]string

	// SearchAll maps each query key to all of its values.
	SearchAll map[string][]string

	// SearchOriginal is the raw query string including "?", or "".
	SearchOriginal string

	// Hash is the decoded fragment without "#".
	Hash string

	// HashOriginal is the raw fragment including "#", or "".
	HashOriginal string
}

// Parse splits a request URL (absolute or path-only) into its parts and
// canonicalizes the path.
func Parse(raw string) (*URL, error) {
	u := &URL{Full: raw}

	rest := raw
	if i := strings.Index(rest, "://"); i > 0 && !strings.Contains(rest[:i], "/") {
		afterScheme := rest[i+3:]
		hostEnd := strings.IndexAny(afterScheme, "/?#")
		if hostEnd < 0 {
			hostEnd = len(afterScheme)
		}
		u.Origin = rest[:i+3] + afterScheme[:hostEnd]
		rest = afterScheme[hostEnd:]
	}

	if before, hash, ok := strings.Cut(rest, "#"); ok {
		rest = before
		u.HashOriginal = "#" + hash
		if decoded, err := url.PathUnescape(hash); err == nil {
			u.Hash = decoded
		} else {
			u.Hash = hash
		}
	}

	path, query, hasQuery := strings.Cut(rest, "?")
	u.PathnameOriginal = path

	u.Search = make(map[string]string)
	u.SearchAll = make(map[string][]string)
	if hasQuery {
		u.SearchOriginal = "?" + query
		values, err := url.ParseQuery(query)
		if err != nil {
			return nil, err
		}
		for key, vals := range values {
			u.SearchAll[key] = vals
			if len(vals) > 0 {
				u.Search[key] = vals[len(vals)-1]
			}
		}
	}

	canonical, err := CanonicalizePath(path)
	if err != nil {
		return nil, err
	}
	u.Pathname = canonical

	return u, nil
}

// Fields returns the URL fields every page context starts with:
// urlFull, urlPathname and urlParsed.
func (u *URL) Fields() map[string]any {
	search := make(map[string]any, len(u.Search))
	for k, v := range u.Search {
		search[k] = v
	}
	searchAll := make(map[string]any, len(u.SearchAll))
	for k, vals := range u.SearchAll {
		list := make([]any, len(vals))
		for i, v := range vals {
			list[i] = v
		}
		searchAll[k] = list
	}

	return map[string]any{
		"urlFull":     u.Full,
		"urlPathname": u.Pathname,
		"urlParsed": map[string]any{
			"origin":           u.Origin,
			"pathname":         u.Pathname,
			"pathnameOriginal": u.PathnameOriginal,
			"search":           search,
			"searchAll":        searchAll,
			"searchOriginal":   u.SearchOriginal,
			"hash":             u.Hash,
			"hashOriginal":     u.HashOriginal,
		},
	}
}
