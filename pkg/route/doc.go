// Package route decides which page renders a URL.
//
// A page is routed by exactly one Definition:
//
//   - Filesystem: derived from the page id (/pages/movie/index -> /movie).
//   - String: a Route String such as "/movie/:movieId", where each :name
//     captures exactly one non-empty path segment.
//   - Func: a RouteFunc that inspects the URL and the page context and
//     returns a match decision with an optional numeric priority.
//
// Resolve evaluates every candidate page and picks the match with the
// highest priority. At equal priority a route function beats a route
// string, which beats a filesystem route. Two matches that are still tied
// are ambiguous: live resolution logs a W301 warning and keeps the first
// page in registry order, strict resolution (used while prerendering)
// fails with E205.
package route
