package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vango-dev/vps/internal/errors"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Server.Host != DefaultHost {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, DefaultHost)
	}
	if cfg.Prerender.OutDir != DefaultOutDir {
		t.Errorf("Prerender.OutDir = %q, want %q", cfg.Prerender.OutDir, DefaultOutDir)
	}
	if cfg.Pages != DefaultPagesDir {
		t.Errorf("Pages = %q, want %q", cfg.Pages, DefaultPagesDir)
	}
}

func TestLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := Load(tmpDir)
	if !errors.HasCode(err, "E141") {
		t.Fatalf("Load(empty dir) error = %v, want E141", err)
	}

	configJSON := `{
  "pages": "src/pages",
  "prerender": {
    "outDir": "build",
    "partial": true,
    "concurrency": 4
  },
  "server": {
    "port": 8080
  }
}
`
	writeFile(t, filepath.Join(tmpDir, ConfigFileName), configJSON)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Pages != "src/pages" {
		t.Errorf("Pages = %q, want %q", cfg.Pages, "src/pages")
	}
	if !cfg.Prerender.Partial {
		t.Error("Prerender.Partial = false, want true")
	}
	if cfg.Prerender.Concurrency != 4 {
		t.Errorf("Prerender.Concurrency = %d, want 4", cfg.Prerender.Concurrency)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Host != DefaultHost {
		t.Errorf("Server.Host = %q, want default %q", cfg.Server.Host, DefaultHost)
	}
	if cfg.OutDirPath() != filepath.Join(tmpDir, "build") {
		t.Errorf("OutDirPath() = %q", cfg.OutDirPath())
	}
	if cfg.PagesPath() != filepath.Join(tmpDir, "src/pages") {
		t.Errorf("PagesPath() = %q", cfg.PagesPath())
	}
}

func TestLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, YAMLConfigFileName), `
pages: app
production: true
output:
  s3:
    bucket: site
    prefix: /www/
`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Pages != "app" || !cfg.Production {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Output.S3 == nil || cfg.Output.S3.Bucket != "site" {
		t.Fatalf("Output.S3 = %+v", cfg.Output.S3)
	}
	if cfg.Output.S3.Prefix != "www/" {
		t.Errorf("S3.Prefix = %q, want leading slash trimmed", cfg.Output.S3.Prefix)
	}
}

func TestLoadInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, ConfigFileName), "{not json")

	_, err := Load(tmpDir)
	if !errors.HasCode(err, "E120") {
		t.Fatalf("error = %v, want E120", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"negative concurrency", func(c *Config) { c.Prerender.Concurrency = -1 }, true},
		{"s3 without bucket", func(c *Config) { c.Output.S3 = &S3Config{} }, true},
		{"s3 with bucket", func(c *Config) { c.Output.S3 = &S3Config{Bucket: "b"} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	for _, name := range []string{ConfigFileName, YAMLConfigFileName} {
		path := filepath.Join(tmpDir, name)
		cfg := New()
		cfg.Prerender.Partial = true
		if err := cfg.SaveTo(path); err != nil {
			t.Fatalf("SaveTo(%s) error = %v", name, err)
		}
		loaded, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile(%s) error = %v", name, err)
		}
		if !loaded.Prerender.Partial {
			t.Errorf("%s: Partial not persisted", name)
		}
		if loaded.Path() != path {
			t.Errorf("Path() = %q, want %q", loaded.Path(), path)
		}
	}
}

func TestFindProjectRoot(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, ConfigFileName), "{}")

	nested := filepath.Join(tmpDir, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	root, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("FindProjectRoot() error = %v", err)
	}
	want, _ := filepath.Abs(tmpDir)
	if root != want {
		t.Errorf("root = %q, want %q", root, want)
	}
}

func TestRootOverride(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, ConfigFileName), `{"root": "site"}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Dir() != filepath.Join(tmpDir, "site") {
		t.Errorf("Dir() = %q", cfg.Dir())
	}
	if cfg.Address() != "localhost:3000" {
		t.Errorf("Address() = %q", cfg.Address())
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
