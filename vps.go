// Package vps renders pages defined by page files.
//
// A site is a set of page files (views, routes, server hooks and client
// entries) plus an Importer that returns the exports of each file. The App
// resolves URLs to pages, loads their modules, builds the page context and
// calls the render hook:
//
//	app, err := vps.New(vps.Config{
//	    Files:    []string{"/pages/index.page.go", "/pages/_default.page.server.go"},
//	    Importer: loader.StaticImporter(exports),
//	})
//	out, err := app.Render(ctx, "/", nil)
//
// Render reports one of three outcomes: a result with status 200, the
// error page with status 404 or 500, or nothing rendered.
//
// Prerender writes every page to static files, and Handler serves the
// pages over HTTP.
package vps
