// Package server serves rendered pages over HTTP.
//
// The handler renders every GET and HEAD request through a render
// pipeline:
//
//   - documents are written with the outcome's status code (200, 404 or 500)
//   - redirects are sent with the redirect's status (302 by default)
//   - when nothing was rendered, the request falls through to
//     Config.Fallback (404 by default)
//
// Requests for "<url>/index.pageContext.json" return the client context of
// the page at <url>, the same file the prerenderer writes next to pages
// with client routing.
//
// Non-canonical paths are redirected with 308 Permanent Redirect, so
// "/about/" and "/a//b" are served at "/about" and "/a/b".
//
// Usage:
//
//	srv := server.New(pipeline, server.DefaultConfig().WithAddress(":3000"))
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// The handler is a chi router and can be mounted elsewhere:
//
//	r := chi.NewRouter()
//	r.Mount("/", srv.Handler())
package server
