package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/vps/internal/errors"
	"github.com/vango-dev/vps/pkg/render"
)

// MetricsConfig configures the Prometheus middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "vps").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for render duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "vps",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

type metrics struct {
	rendersTotal    *prometheus.CounterVec
	renderDuration  *prometheus.HistogramVec
	renderErrors    *prometheus.CounterVec
	nothingRendered prometheus.Counter
}

// Metrics are registered once per process; later Prometheus calls reuse
// them.
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		rendersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "renders_total",
			Help:        "Total number of render pipeline invocations",
			ConstLabels: config.ConstLabels,
		}, []string{"status", "kind"}),

		renderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "render_duration_seconds",
			Help:        "Render pipeline invocation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"status"}),

		renderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "render_errors_total",
			Help:        "Total number of failed render pipeline invocations",
			ConstLabels: config.ConstLabels,
		}, []string{"category"}),

		nothingRendered: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "nothing_rendered_total",
			Help:        "Total number of invocations that rendered nothing",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Prometheus creates middleware that records render metrics.
//
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) render.Middleware {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()

	return render.MiddlewareFunc(func(ctx context.Context, info *render.Info, next func(context.Context) error) error {
		err := next(ctx)

		status, kind := "500", "none"
		var failure error = err
		if out := info.Outcome; out != nil {
			status = strconv.Itoa(out.StatusCode)
			if out.Result != nil {
				kind = out.Result.Kind.String()
			}
			if out.NothingRendered {
				m.nothingRendered.Inc()
			}
			if failure == nil {
				failure = out.Err
			}
		}

		m.renderDuration.WithLabelValues(status).Observe(time.Since(info.Start).Seconds())
		m.rendersTotal.WithLabelValues(status, kind).Inc()
		if failure != nil {
			m.renderErrors.WithLabelValues(categorizeError(failure)).Inc()
		}
		return err
	})
}

// categorizeError keeps the error label low-cardinality.
func categorizeError(err error) string {
	switch errors.CategoryOf(err) {
	case errors.CategoryUsage:
		return "usage"
	case errors.CategoryHook:
		return "hook"
	case errors.CategoryConfig:
		return "config"
	default:
		return "internal"
	}
}

// Collector exposes the registered metrics.
type Collector struct {
	RendersTotal    *prometheus.CounterVec
	RenderDuration  *prometheus.HistogramVec
	RenderErrors    *prometheus.CounterVec
	NothingRendered prometheus.Counter
}

// GetMetrics returns the registered metrics, or nil when Prometheus has
// not been called yet.
func GetMetrics() *Collector {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()

	if globalMetrics == nil {
		return nil
	}
	return &Collector{
		RendersTotal:    globalMetrics.rendersTotal,
		RenderDuration:  globalMetrics.renderDuration,
		RenderErrors:    globalMetrics.renderErrors,
		NothingRendered: globalMetrics.nothingRendered,
	}
}
