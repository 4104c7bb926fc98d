package cli

import (
	"bytes"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/vps/internal/demo"
	"github.com/vango-dev/vps/internal/errors"
	"github.com/vango-dev/vps/pkg/render"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vps.json"), []byte(`{"prerender": {"outDir": "dist"}}`), 0o644))

	site := Site{Files: demo.Files(), Importer: demo.Importer(), Middleware: []render.Middleware{}}
	cmd := NewRootCommand(site, Build{Version: "1.2.3"})
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", dir, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRoutesCommand(t *testing.T) {
	out, _, err := run(t, "routes")
	require.NoError(t, err)
	assert.Contains(t, out, "PAGE")
	assert.Contains(t, out, "/posts/:slug")
	assert.Contains(t, out, "/pages/search")
	assert.Contains(t, out, "function")
	assert.Contains(t, out, "/pages/_error")
}

func TestRenderCommand(t *testing.T) {
	out, errOut, err := run(t, "render", "/about")
	require.NoError(t, err)
	assert.Contains(t, out, "rendered by vps")
	assert.Contains(t, errOut, "200 document")

	out, _, err = run(t, "render", "/posts/nope")
	require.NoError(t, err)
	assert.Equal(t, "302 /\n", out)
}

func TestPrerenderCommand(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "site")
	out, _, err := run(t, "prerender", "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Prerendered")

	data, err := os.ReadFile(filepath.Join(outDir, "posts", "hello", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "<h1>Hello</h1>")
	_, err = os.Stat(filepath.Join(outDir, "404.html"))
	assert.NoError(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, _, err := run(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3\n", out)

	out, _, err = run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Commit:     unknown")
}

func TestInvalidLogLevel(t *testing.T) {
	_, _, err := run(t, "--log-level", "loud", "routes")
	assert.Error(t, err)
}

func TestPrintError(t *testing.T) {
	errors.DisableColors()
	defer errors.EnableColors()

	var buf bytes.Buffer
	PrintError(&buf, stderrors.Join(
		errors.New("E208").WithDetail(`"movie/1"`).WithFile("/pages/movie.page.server.go"),
		errors.New("E211").WithDetail("/bogus"),
		stderrors.New("plain"),
	))
	out := buf.String()
	assert.Contains(t, out, "ERROR E208:")
	assert.Contains(t, out, "/pages/movie.page.server.go")
	assert.Contains(t, out, "ERROR E211:")
	assert.True(t, strings.Contains(out, "Error:") && strings.Contains(out, "plain"))
}
