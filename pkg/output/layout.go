package output

import "strings"

// PageContextSuffix ends the path of every page context sidecar.
const PageContextSuffix = "index.pageContext.json"

// DocumentPath returns the output path of the document for url:
// "/x/y" -> "/x/y/index.html", "/" -> "/index.html". With
// doNotCreateExtraDirectory, "/x/y" -> "/x/y.html".
func DocumentPath(url string, doNotCreateExtraDirectory bool) string {
	base := strings.TrimSuffix(url, "/")
	if base == "" {
		return "/index.html"
	}
	if doNotCreateExtraDirectory {
		return base + ".html"
	}
	return base + "/index.html"
}

// PageContextPath returns the output path of the page context sidecar for
// url: "/x/y" -> "/x/y/index.pageContext.json".
func PageContextPath(url string) string {
	return strings.TrimSuffix(url, "/") + "/" + PageContextSuffix
}

// URLFromPageContextPath reverses PageContextPath.
func URLFromPageContextPath(p string) (string, bool) {
	if !strings.HasSuffix(p, "/"+PageContextSuffix) {
		return "", false
	}
	url := strings.TrimSuffix(p, "/"+PageContextSuffix)
	if url == "" {
		url = "/"
	}
	return url, true
}
