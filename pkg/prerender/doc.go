// Package prerender renders every page of a site to static files.
//
// A run goes through these steps:
//
//  1. Collect all pages except the error page.
//  2. Call each prerender hook once, concurrently, and normalize what it
//     returns (a URL, an Item, a {url, pageContext} map or a slice of
//     those) into entries.
//  3. Merge entries by URL; later contributions override earlier ones
//     key by key.
//  4. Resolve every URL (ambiguity is an error here) and render it with
//     its merged page context. The addPageContext hook is skipped when an
//     entry supplied a page context.
//  5. Render the remaining pages whose route matches a single URL. Pages
//     with parameterized or function routes get a W302 warning unless the
//     run is partial. Pages exporting doNotPrerender are skipped.
//  6. Render the error page as /404 when nothing produced /404.
//  7. Write the documents, one at a time, plus a page context sidecar for
//     pages with client routing.
//
// Any usage error aborts the run before anything is written, and so does
// any render error.
package prerender
