// Package render runs the page render pipeline.
//
// One invocation walks through four steps in order:
//
//  1. Resolving: the URL is matched against the routable pages.
//  2. Loading: the page's view, server hooks and client entry are loaded.
//  3. ContextBuilding: URL fields, the caller's initial context, route
//     parameters and the addPageContext contribution are accumulated.
//  4. Rendering: the render hook is called with the view and the context.
//
// A URL matching no page ends with status 404, a failing step with status
// 500. In both cases the _error page is rendered instead, with
// pageProps.is404 telling the two apart. Without an error page the
// Outcome reports NothingRendered and the caller falls back to something
// else.
//
// Render hook results are classified without being interpreted: markup
// (a string, HTML or Document) becomes a document with the serialized
// client context injected before </body>; a Redirect, or any value with a
// RedirectURL method, becomes a redirect; anything else is passed through
// as a custom result.
//
//	p := render.New(render.Config{Loader: ld})
//	out, err := p.Render(ctx, "/movie/42", nil)
//	if out.NothingRendered {
//	    next.ServeHTTP(w, r)
//	}
package render
