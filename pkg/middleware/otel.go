package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/vps/pkg/render"
)

const defaultTracerName = "vps"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "vps").
	TracerName string

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider

	// Filter decides which invocations are traced. Nil traces all.
	Filter func(info *render.Info) bool

	// AttributeExtractor adds custom attributes to each span.
	AttributeExtractor func(info *render.Info) []attribute.KeyValue

	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithFilter sets a filter function for invocations.
func WithFilter(filter func(info *render.Info) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(info *render.Info) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// OpenTelemetry creates middleware that traces every invocation.
//
// Configure the global provider in main before serving:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) render.Middleware {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	if config.TracerProvider == nil {
		config.TracerProvider = otel.GetTracerProvider()
	}
	config.tracer = config.TracerProvider.Tracer(config.TracerName)

	return render.MiddlewareFunc(func(ctx context.Context, info *render.Info, next func(context.Context) error) error {
		if config.Filter != nil && !config.Filter(info) {
			return next(ctx)
		}

		attrs := []attribute.KeyValue{
			attribute.String("vps.url", info.URL),
			attribute.String("vps.invocation_id", info.InvocationID),
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(info)...)
		}

		spanCtx, span := config.tracer.Start(ctx, "vps.render",
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
			trace.WithTimestamp(info.Start),
		)
		defer span.End()

		err := next(spanCtx)

		failure := err
		if out := info.Outcome; out != nil {
			span.SetAttributes(
				attribute.String("vps.page_id", string(out.PageID)),
				attribute.Int("http.status_code", out.StatusCode),
				attribute.Bool("vps.nothing_rendered", out.NothingRendered),
			)
			if out.Result != nil {
				span.SetAttributes(attribute.String("vps.result_kind", out.Result.Kind.String()))
			}
			if failure == nil {
				failure = out.Err
			}
		}

		if failure != nil {
			span.RecordError(failure)
			span.SetStatus(codes.Error, failure.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	})
}

// SpanFromContext returns the render span stored in a hook's context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}
