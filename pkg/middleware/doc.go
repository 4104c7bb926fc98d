// Package middleware instruments the render pipeline.
//
// Both middleware implement render.Middleware and observe every
// invocation, live or prerender:
//
//	p := render.New(render.Config{
//	    Loader: ld,
//	    Middleware: []render.Middleware{
//	        middleware.OpenTelemetry(),
//	        middleware.Prometheus(middleware.WithNamespace("shop")),
//	    },
//	})
//
// # Prometheus Metrics
//
//   - vps_renders_total{status,kind}: invocations by status code and
//     result kind (document, redirect, custom, none)
//   - vps_render_duration_seconds{status}: invocation duration
//   - vps_render_errors_total{category}: failed invocations by error
//     category (usage, hook, internal)
//   - vps_nothing_rendered_total: invocations that rendered nothing
//
// Expose them with promhttp.Handler(); `vps serve --metrics` mounts it at
// /metrics.
//
// # OpenTelemetry
//
// OpenTelemetry starts one span per invocation using the global tracer
// provider (or WithTracerProvider). The span carries the URL and the
// invocation id, and once the page has rendered its id, status code and
// result kind. Hooks receive the span's context.
package middleware
