// Package demo is a small markdown site used by the vps command for smoke
// runs. Pages are markdown documents rendered with goldmark.
package demo

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/vango-dev/vps/pkg/loader"
	"github.com/vango-dev/vps/pkg/pagecontext"
	"github.com/vango-dev/vps/pkg/render"
	"github.com/vango-dev/vps/pkg/route"
)

// Post is a blog post of the demo site.
type Post struct {
	Slug  string
	Title string
	Body  string
}

var posts = map[string]Post{
	"hello": {
		Slug:  "hello",
		Title: "Hello",
		Body:  "# Hello\n\nThe first post, rendered from *markdown*.\n",
	},
	"routing": {
		Slug:  "routing",
		Title: "Routing",
		Body:  "# Routing\n\nRoute strings look like `/posts/:slug`.\n\n| route | page |\n|---|---|\n| `/` | index |\n| `/posts/:slug` | post |\n",
	},
}

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Posts returns the posts sorted by slug.
func Posts() []Post {
	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// Markdown converts source to HTML.
func Markdown(source string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Files lists the page files of the site.
func Files() []string {
	files := make([]string, 0, len(exports))
	for f := range exports {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Importer returns the exports of the site's page files.
func Importer() loader.Importer {
	return loader.StaticImporter(exports)
}

var exports = map[string]loader.Exports{
	"/pages/_default.page.server.go": {
		"render":       renderMarkdown,
		"passToClient": []string{"title", "pageProps"},
	},
	"/pages/_default.page.client.go": {
		"clientRouting": true,
	},

	"/pages/index.page.go": {"Page": indexMarkdown()},
	"/pages/about.page.go": {"Page": "# About\n\nThis site is rendered by vps.\n"},

	"/pages/post.page.go":       {"Page": "post"},
	"/pages/post.page.route.go": {"default": "/posts/:slug"},
	"/pages/post.page.server.go": {
		"addPageContext": func(_ context.Context, args loader.AddPageContextArgs) (map[string]any, error) {
			slug := args.PageContext["routeParams"].(map[string]string)["slug"]
			p, ok := posts[slug]
			if !ok {
				return map[string]any{pagecontext.KeyRedirectTo: render.Redirect{URL: "/"}}, nil
			}
			return map[string]any{"title": p.Title, "body": p.Body}, nil
		},
		"prerender": func(context.Context) (any, error) {
			var urls []string
			for _, p := range Posts() {
				urls = append(urls, "/posts/"+p.Slug)
			}
			return urls, nil
		},
	},

	"/pages/search.page.go": {"Page": "# Search\n"},
	"/pages/search.page.route.go": {
		"default": func(_ context.Context, args route.RouteArgs) (any, error) {
			if args.Pathname != "/search" {
				return false, nil
			}
			return map[string]any{"match": 1}, nil
		},
	},
	"/pages/search.page.server.go": {
		"doNotPrerender": true,
		"addPageContext": func(_ context.Context, args loader.AddPageContextArgs) (map[string]any, error) {
			q := ""
			if parsed, ok := args.PageContext["urlParsed"].(map[string]any); ok {
				if search, ok := parsed["search"].(map[string]any); ok {
					q, _ = search["q"].(string)
				}
			}
			var hits []string
			for _, p := range Posts() {
				if q != "" && strings.Contains(strings.ToLower(p.Body), strings.ToLower(q)) {
					hits = append(hits, fmt.Sprintf("- [%s](/posts/%s)", p.Title, p.Slug))
				}
			}
			body := fmt.Sprintf("# Search\n\n%d results for %q\n\n%s\n", len(hits), q, strings.Join(hits, "\n"))
			return map[string]any{"title": "Search", "body": body}, nil
		},
	},

	"/pages/_error.page.go": {"Page": "error"},
	"/pages/_error.page.server.go": {
		"addPageContext": func(_ context.Context, args loader.AddPageContextArgs) (map[string]any, error) {
			if args.PageContext["is404"] == true {
				return map[string]any{"title": "Not found", "body": "# Page not found\n"}, nil
			}
			return map[string]any{"title": "Error", "body": "# Something went wrong\n"}, nil
		},
	},
}

func indexMarkdown() string {
	var b strings.Builder
	b.WriteString("# vps demo\n\n")
	for _, p := range Posts() {
		fmt.Fprintf(&b, "- [%s](/posts/%s)\n", p.Title, p.Slug)
	}
	b.WriteString("\n[About](/about)\n")
	return b.String()
}

// renderMarkdown renders the "body" page context field, falling back to
// the page's view.
func renderMarkdown(_ context.Context, args loader.RenderArgs) (any, error) {
	if r, ok := args.PageContext[pagecontext.KeyRedirectTo].(render.Redirector); ok {
		return r, nil
	}
	source, _ := args.PageContext["body"].(string)
	if source == "" {
		source, _ = args.Page.(string)
	}
	body, err := Markdown(source)
	if err != nil {
		return nil, err
	}

	title, _ := args.PageContext["title"].(string)
	if title == "" {
		title = "vps demo"
	}
	return render.HTML(fmt.Sprintf(layout, html.EscapeString(title), body)), nil
}

const layout = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%s</title></head>
<body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<main>%s</main>
</body>
</html>`
