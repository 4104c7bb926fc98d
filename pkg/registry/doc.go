// Package registry builds the immutable Page Registry.
//
// Pages are discovered from file names once, at startup. Every file whose
// name contains ".page" belongs to the page identified by the path before
// that suffix:
//
//	/pages/
//	├── _default.page.server.go   → default server hooks for /pages/**
//	├── _default.page.client.go   → default client entry for /pages/**
//	├── _error.page.go            → error page (/pages/_error)
//	├── index.page.go             → view of /pages/index          (route /)
//	├── about.page.go             → view of /pages/about          (route /about)
//	└── movie/
//	    ├── index.page.go         → view of /pages/movie/index    (route /movie)
//	    ├── index.page.route.go   → route of /pages/movie/index
//	    ├── index.page.server.go  → server hooks of /pages/movie/index
//	    └── index.page.client.go  → client entry of /pages/movie/index
//
// Server and client files fall back to the nearest _default file found in
// an ancestor directory.
//
// # Usage
//
//	reg, err := registry.Scan("pages", registry.ScanOptions{})
//	// or, with a generated file list:
//	reg, err := registry.New([]string{"/pages/index.page.go", ...})
//
//	for _, id := range reg.PageIDs() {
//	    fmt.Println(id, reg.FilesystemRoute(id))
//	}
//
// The registry never re-scans; the live pipeline only reads it.
package registry
