// Package cli implements the vps command line. A site's own main package
// passes its page files and importer:
//
//	func main() {
//	    os.Exit(cli.Execute(cli.Site{Importer: pages.Importer()}, cli.Build{Version: version}))
//	}
package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/vango-dev/vps"
	"github.com/vango-dev/vps/internal/config"
	"github.com/vango-dev/vps/internal/errors"
	"github.com/vango-dev/vps/pkg/loader"
	"github.com/vango-dev/vps/pkg/middleware"
	"github.com/vango-dev/vps/pkg/render"
)

// Site is what a command needs to know about the site it runs.
type Site struct {
	// Files lists the page files. When empty, the configured pages
	// directory is scanned.
	Files []string

	Importer loader.Importer

	// Middleware wraps every render. Defaults to Prometheus metrics and
	// OpenTelemetry tracing.
	Middleware []render.Middleware
}

// Build holds version information set at build time.
type Build struct {
	Version string
	Commit  string
	Date    string
}

// state is shared by the commands of one invocation.
type state struct {
	site      Site
	build     Build
	configDir string
	logLevel  string
	logger    *slog.Logger
}

// NewRootCommand returns the vps command.
func NewRootCommand(site Site, build Build) *cobra.Command {
	if build.Version == "" {
		build.Version = "dev"
	}
	st := &state{site: site, build: build}

	root := &cobra.Command{
		Use:   "vps",
		Short: "Render and prerender pages",
		Long: `vps resolves URLs to pages, renders them through their hooks and
prerenders whole sites to static files.

Examples:
  vps serve --port=8080
  vps prerender --out=dist
  vps routes`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return st.setupLogger(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVarP(&st.configDir, "config", "c", "", "Project directory holding vps.json (default: nearest parent)")
	root.PersistentFlags().StringVar(&st.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(
		serveCmd(st),
		prerenderCmd(st),
		renderCmd(st),
		routesCmd(st),
		versionCmd(st),
	)
	return root
}

// Execute runs the vps command and returns the process exit code.
func Execute(site Site, build Build) int {
	cmd := NewRootCommand(site, build)
	if err := cmd.Execute(); err != nil {
		PrintError(os.Stderr, err)
		return 1
	}
	return 0
}

// PrintError writes err for the terminal. Coded errors are printed in
// full, one per joined error.
func PrintError(w io.Writer, err error) {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			PrintError(w, e)
		}
		return
	}
	var vpsErr *errors.VPSError
	if stderrors.As(err, &vpsErr) {
		if vpsErr.Error() != err.Error() {
			fmt.Fprintf(w, "%s\n", err)
		}
		fmt.Fprint(w, vpsErr.Format())
		return
	}
	fmt.Fprintf(w, "\033[31mError:\033[0m %s\n", err)
}

func (st *state) setupLogger(w io.Writer) error {
	level, err := charmlog.ParseLevel(st.logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level %q", st.logLevel)
	}
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		Prefix:          "vps",
		ReportTimestamp: true,
	})
	st.logger = slog.New(handler)
	slog.SetDefault(st.logger)
	return nil
}

// project loads the project configuration. Without a config file the
// defaults apply, relative to the working directory.
func (st *state) project() (*config.Config, error) {
	if st.configDir != "" {
		return config.Load(st.configDir)
	}
	pc, err := config.LoadFromWorkingDir()
	if errors.HasCode(err, "E141") {
		return config.New(), nil
	}
	return pc, err
}

func (st *state) app(pc *config.Config) (*vps.App, error) {
	cfg, err := vps.ConfigFromProject(pc, st.site.Files)
	if err != nil {
		return nil, err
	}
	cfg.Importer = st.site.Importer
	cfg.Logger = st.logger
	cfg.Middleware = st.site.Middleware
	if cfg.Middleware == nil {
		cfg.Middleware = []render.Middleware{middleware.OpenTelemetry(), middleware.Prometheus()}
	}
	return vps.New(cfg)
}
