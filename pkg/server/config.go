package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config configures a Server.
type Config struct {
	// Address is the address to listen on.
	// Default: ":3000".
	Address string

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 10 seconds.
	ShutdownTimeout time.Duration

	// ReadHeaderTimeout bounds the time to read request headers.
	// Default: 5 seconds.
	ReadHeaderTimeout time.Duration

	// ReadTimeout, WriteTimeout and IdleTimeout are passed to http.Server.
	// Zero means no timeout.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// AssetsDir, when set, is served at AssetsPrefix.
	AssetsDir    string
	AssetsPrefix string

	// MetricsPath, when set, serves Prometheus metrics from
	// MetricsGatherer (default prometheus.DefaultGatherer).
	MetricsPath     string
	MetricsGatherer prometheus.Gatherer

	// InitialContext builds the initial page context of a request.
	InitialContext func(r *http.Request) map[string]any

	// Fallback handles requests no page rendered.
	// Default: http.NotFoundHandler().
	Fallback http.Handler
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":3000",
		ShutdownTimeout:   10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		AssetsPrefix:      "/assets/",
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// WithAddress sets the listen address and returns the config for chaining.
func (c *Config) WithAddress(addr string) *Config {
	c.Address = addr
	return c
}

// WithMetrics serves Prometheus metrics at path.
func (c *Config) WithMetrics(path string) *Config {
	c.MetricsPath = path
	return c
}

// WithAssets serves dir at prefix.
func (c *Config) WithAssets(dir, prefix string) *Config {
	c.AssetsDir = dir
	c.AssetsPrefix = prefix
	return c
}

// withDefaults fills the unset fields.
func (c *Config) withDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}
	out := c.Clone()
	defaults := DefaultConfig()
	if out.Address == "" {
		out.Address = defaults.Address
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if out.AssetsPrefix == "" {
		out.AssetsPrefix = defaults.AssetsPrefix
	}
	if out.MetricsGatherer == nil {
		out.MetricsGatherer = prometheus.DefaultGatherer
	}
	if out.Fallback == nil {
		out.Fallback = http.NotFoundHandler()
	}
	return out
}
