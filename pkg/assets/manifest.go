// Package assets resolves the built script of a page's client entry.
//
// The client build writes a manifest mapping source files to their
// fingerprinted output. Both the flat form
//
//	{"pages/movie/index.page.client.go": "assets/movie.a1b2c3d4.js"}
//
// and the object form emitted by Vite
//
//	{"pages/movie/index.page.client.go": {"file": "assets/movie.a1b2c3d4.js"}}
//
// are accepted. Keys are matched with or without a leading slash.
package assets

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Manifest holds the mapping from source files to built files.
// It is safe for concurrent use.
type Manifest struct {
	entries map[string]string
	mu      sync.RWMutex
}

// NewManifest creates an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		entries: make(map[string]string),
	}
}

// Load reads a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes manifest JSON.
func Parse(data []byte) (*Manifest, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("assets: invalid manifest: %w", err)
	}

	m := NewManifest()
	for source, value := range raw {
		var file string
		if err := json.Unmarshal(value, &file); err != nil {
			var chunk struct {
				File string `json:"file"`
			}
			if err := json.Unmarshal(value, &chunk); err != nil || chunk.File == "" {
				return nil, fmt.Errorf("assets: invalid manifest entry %q", source)
			}
			file = chunk.File
		}
		m.entries[normalizeKey(source)] = file
	}
	return m, nil
}

func normalizeKey(source string) string {
	return strings.TrimPrefix(source, "/")
}

// Resolve returns the built path for a source file, or the source
// unchanged when it is not in the manifest.
func (m *Manifest) Resolve(source string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if resolved, ok := m.entries[normalizeKey(source)]; ok {
		return resolved
	}
	return normalizeKey(source)
}

// Has reports whether the manifest contains source.
func (m *Manifest) Has(source string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.entries[normalizeKey(source)]
	return ok
}

// Set adds or updates an entry.
func (m *Manifest) Set(source, resolved string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[normalizeKey(source)] = resolved
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}
