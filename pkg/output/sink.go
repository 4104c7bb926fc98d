package output

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Sink receives prerendered files.
type Sink interface {
	Write(ctx context.Context, name string, data []byte) error
}

// cleanName validates a sink path and returns it without its leading
// slash.
func cleanName(name string) (string, error) {
	if !strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("output: path %q must start with /", name)
	}
	clean := path.Clean(name)
	if clean != name || strings.Contains(name, "\\") || clean == "/" {
		return "", fmt.Errorf("output: invalid path %q", name)
	}
	return clean[1:], nil
}

// ContentType returns the MIME type for a sink path.
func ContentType(name string) string {
	switch path.Ext(name) {
	case ".html":
		return "text/html; charset=utf-8"
	case ".json":
		return "application/json"
	}
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// DirSink writes files below a directory.
type DirSink struct {
	dir string
}

// NewDirSink creates the directory if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DirSink{dir: dir}, nil
}

// Dir returns the output directory.
func (s *DirSink) Dir() string { return s.dir }

// Write implements Sink.
func (s *DirSink) Write(_ context.Context, name string, data []byte) error {
	rel, err := cleanName(name)
	if err != nil {
		return err
	}
	target := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.WriteFile(target, data, 0o644)
}

// MemorySink keeps files in memory.
type MemorySink struct {
	mu    sync.Mutex
	files map[string][]byte
	order []string
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{files: make(map[string][]byte)}
}

// Write implements Sink.
func (s *MemorySink) Write(_ context.Context, name string, data []byte) error {
	if _, err := cleanName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.files[name]; !exists {
		s.order = append(s.order, name)
	}
	s.files[name] = append([]byte(nil), data...)
	return nil
}

// File returns the content written under name.
func (s *MemorySink) File(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.files[name]
	return data, ok
}

// Names returns all written paths, sorted.
func (s *MemorySink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := append([]string(nil), s.order...)
	sort.Strings(names)
	return names
}

// Writes returns the paths in the order they were first written.
func (s *MemorySink) Writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.order...)
}
