package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vps/internal/errors"
	"github.com/vango-dev/vps/pkg/output"
	"github.com/vango-dev/vps/pkg/render"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serveCmd(st *state) *cobra.Command {
	var (
		host    string
		port    int
		metrics bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve pages over HTTP",
		Long: `Serve renders every request through the page pipeline.

Examples:
  vps serve
  vps serve --host=0.0.0.0 --port=8080 --metrics`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pc, err := st.project()
			if err != nil {
				return err
			}
			if host != "" {
				pc.Server.Host = host
			}
			if port != 0 {
				pc.Server.Port = port
			}
			if metrics {
				pc.Server.Metrics = true
			}

			app, err := st.app(pc)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()
			return app.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host to bind (default from vps.json)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from vps.json)")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Expose Prometheus metrics at /metrics")
	return cmd
}

func prerenderCmd(st *state) *cobra.Command {
	var (
		out         string
		partial     bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "prerender",
		Short: "Render every page to static files",
		Long: `Prerender calls the prerender hooks, renders every URL and writes
the documents to the output directory, or to S3 when output.s3 is
configured.

Examples:
  vps prerender
  vps prerender --out=dist --partial`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pc, err := st.project()
			if err != nil {
				return err
			}
			if out != "" {
				pc.Prerender.OutDir = out
			}
			if partial {
				pc.Prerender.Partial = true
			}
			if concurrency > 0 {
				pc.Prerender.Concurrency = concurrency
			}

			app, err := st.app(pc)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			var sink output.Sink
			if s3 := pc.Output.S3; s3 != nil {
				sink, err = output.NewS3SinkFromEnv(ctx, s3.Bucket, s3.Prefix, s3.Region)
				if err != nil {
					return err
				}
			}

			report, err := app.Prerender(ctx, sink)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, warning := range report.Warnings {
				if vpsErr, ok := warning.(*errors.VPSError); ok {
					fmt.Fprintf(w, "%s %s\n", errors.WarningMarker(), vpsErr.FormatCompact())
					continue
				}
				fmt.Fprintf(w, "%s %s\n", errors.WarningMarker(), warning)
			}
			fmt.Fprintf(w, "\033[32m✓\033[0m Prerendered %d pages in %s\n", len(report.Pages), report.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output directory (default from vps.json)")
	cmd.Flags().BoolVar(&partial, "partial", false, "Do not warn about pages that cannot be prerendered")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Hooks and renders running at once (default GOMAXPROCS)")
	return cmd
}

func renderCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <url>",
		Short: "Render one URL and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := st.project()
			if err != nil {
				return err
			}
			app, err := st.app(pc)
			if err != nil {
				return err
			}

			out, err := app.Render(cmd.Context(), args[0], nil)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out.NothingRendered {
				if out.Err != nil {
					return out.Err
				}
				return fmt.Errorf("nothing rendered for %s", args[0])
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "%d %s (page %s)\n", out.StatusCode, out.Result.Kind, out.PageID)
			switch out.Result.Kind {
			case render.ResultDocument:
				fmt.Fprintln(w, out.Result.Markup)
			case render.ResultRedirect:
				fmt.Fprintf(w, "%d %s\n", out.Result.Status, out.Result.Location)
			default:
				fmt.Fprintf(w, "%v\n", out.Result.Value)
			}
			return nil
		},
	}
	return cmd
}

func routesCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List pages and their routes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pc, err := st.project()
			if err != nil {
				return err
			}
			app, err := st.app(pc)
			if err != nil {
				return err
			}
			routes, err := app.Routes(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PAGE\tKIND\tROUTE")
			for _, r := range routes {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.PageID, r.Kind, r.Route)
			}
			if id := app.Registry().ErrorPageID(); id != "" {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", id, "error", "-")
			}
			return tw.Flush()
		},
	}
}

func versionCmd(st *state) *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(w, st.build.Version)
				return
			}
			fmt.Fprintf(w, "  Version:    %s\n", st.build.Version)
			fmt.Fprintf(w, "  Commit:     %s\n", orUnknown(st.build.Commit))
			fmt.Fprintf(w, "  Built:      %s\n", orUnknown(st.build.Date))
			fmt.Fprintf(w, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(w, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(w, "  CPUs:       %s\n", strconv.Itoa(runtime.NumCPU()))
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only version number")
	return cmd
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
