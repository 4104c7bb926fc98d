package registry

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// ScanOptions configures directory scanning.
type ScanOptions struct {
	// SkipDirs lists directory names that are never entered.
	// Default: node_modules and hidden directories.
	SkipDirs []string
}

// Scan walks root once and builds a registry from the page files found.
// Returned file paths are relative to root with a leading slash, e.g.
// "/movie/index.page.go" for root/movie/index.page.go.
func Scan(root string, opts ScanOptions) (*Registry, error) {
	files, err := ScanFiles(root, opts)
	if err != nil {
		return nil, err
	}
	return New(files)
}

// ScanFiles walks root and returns the page file paths it contains.
func ScanFiles(root string, opts ScanOptions) ([]string, error) {
	skip := opts.SkipDirs
	if skip == nil {
		skip = []string{"node_modules"}
	}

	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if p == root {
				return nil
			}
			name := d.Name()
			if strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			for _, s := range skip {
				if name == s {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if strings.HasSuffix(p, "_test.go") {
			return nil
		}
		if _, _, ok, _ := parseFileName(d.Name()); !ok && !strings.Contains(d.Name(), ".page.") {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("scanning %s: %w", p, err)
		}
		files = append(files, "/"+filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
