// Package routepath parses request URLs into the URL fields of a page
// context and canonicalizes their paths for route matching.
//
// Canonicalization collapses repeated slashes, resolves "." and ".."
// segments and drops the trailing slash. Inputs containing a backslash, a
// NUL byte, an invalid percent-escape or a ".." escaping the root are
// rejected.
package routepath
