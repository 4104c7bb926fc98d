package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/vps/pkg/output"
	"github.com/vango-dev/vps/pkg/render"
	"github.com/vango-dev/vps/pkg/routepath"
)

// InvocationIDHeader carries the pipeline invocation id of a response.
const InvocationIDHeader = "X-Invocation-Id"

// Server serves a render pipeline over HTTP.
type Server struct {
	pipeline   *render.Pipeline
	config     *Config
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a server for p. A nil config uses DefaultConfig.
func New(p *render.Pipeline, config *Config, opts ...Option) *Server {
	s := &Server{
		pipeline: p,
		config:   config.withDefaults(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	if s.config.MetricsPath != "" {
		r.Handle(s.config.MetricsPath, promhttp.HandlerFor(s.config.MetricsGatherer, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	}
	if s.config.AssetsDir != "" {
		prefix := "/" + strings.Trim(s.config.AssetsPrefix, "/") + "/"
		r.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(s.config.AssetsDir))))
	}

	r.Get("/*", s.servePage)
	r.Head("/*", s.servePage)
	return r
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) initial(r *http.Request) map[string]any {
	if s.config.InitialContext == nil {
		return nil
	}
	return s.config.InitialContext(r)
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	rawPath := r.URL.EscapedPath()
	canon, err := routepath.CanonicalizePath(rawPath)
	if err != nil {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}
	if canon != rawPath {
		target := canon
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		// 308 keeps the method.
		http.Redirect(w, r, target, http.StatusPermanentRedirect)
		return
	}

	if url, ok := output.URLFromPageContextPath(rawPath); ok {
		s.servePageContext(w, r, url)
		return
	}

	url := r.URL.RequestURI()
	out, err := s.pipeline.Render(r.Context(), url, s.initial(r))
	if err != nil {
		s.logger.Error("render failed", "url", url, "request_id", chimw.GetReqID(r.Context()), "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if out.NothingRendered {
		s.config.Fallback.ServeHTTP(w, r)
		return
	}

	w.Header().Set(InvocationIDHeader, out.InvocationID)
	s.writeResult(w, r, out)
}

func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, out *render.Outcome) {
	res := out.Result
	switch res.Kind {
	case render.ResultRedirect:
		http.Redirect(w, r, res.Location, res.Status)
	case render.ResultDocument:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(out.StatusCode)
		if r.Method != http.MethodHead {
			_, _ = w.Write([]byte(res.Markup))
		}
	default:
		if h, ok := res.Value.(http.Handler); ok {
			h.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(out.StatusCode)
		if r.Method != http.MethodHead {
			if err := json.NewEncoder(w).Encode(res.Value); err != nil {
				s.logger.Error("encode render result", "page_id", string(out.PageID), "error", err)
			}
		}
	}
}

// servePageContext serves the client context of the page at url. A
// redirecting page redirects to the target's context file.
func (s *Server) servePageContext(w http.ResponseWriter, r *http.Request, url string) {
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}
	data, err := s.pipeline.ClientContext(r.Context(), url, s.initial(r))
	if err != nil {
		var redirect render.Redirector
		switch {
		case errors.Is(err, render.ErrNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.As(err, &redirect):
			target := redirect.RedirectURL()
			if strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") {
				target = output.PageContextPath(target)
			}
			http.Redirect(w, r, target, redirectStatus(redirect))
		default:
			s.logger.Error("client context failed", "url", url, "request_id", chimw.GetReqID(r.Context()), "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodHead {
		_, _ = w.Write([]byte(data))
	}
}

func redirectStatus(r render.Redirector) int {
	if st, ok := r.(interface{ RedirectStatus() int }); ok && st.RedirectStatus() != 0 {
		return st.RedirectStatus()
	}
	return http.StatusFound
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", ln.Addr().String())
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}
	s.logger.Info("server shutdown complete")
	return nil
}

// Config returns the server configuration.
func (s *Server) Config() *Config {
	return s.config
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}
