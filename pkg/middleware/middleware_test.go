package middleware

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vango-dev/vps/internal/errors"
	"github.com/vango-dev/vps/pkg/render"
)

func resetGlobalMetricsForTest() {
	globalMetricsMu.Lock()
	globalMetrics = nil
	globalMetricsMu.Unlock()
}

// run invokes mw with a handler that produces out.
func run(mw render.Middleware, out *render.Outcome, handlerErr error) (*render.Info, error) {
	info := &render.Info{InvocationID: "inv-1", URL: "/movie/1", Start: time.Now()}
	err := mw.Handle(context.Background(), info, func(context.Context) error {
		info.Outcome = out
		return handlerErr
	})
	return info, err
}

func TestPrometheusRecordsOutcomes(t *testing.T) {
	resetGlobalMetricsForTest()
	mw := Prometheus(WithRegistry(prometheus.NewRegistry()))

	if _, err := run(mw, &render.Outcome{StatusCode: 200, Result: &render.Result{Kind: render.ResultDocument}}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := run(mw, &render.Outcome{StatusCode: 404, NothingRendered: true}, nil); err != nil {
		t.Fatal(err)
	}
	hookErr := errors.New("E401")
	if _, err := run(mw, &render.Outcome{StatusCode: 500, Err: hookErr, Result: &render.Result{Kind: render.ResultDocument}}, nil); err != nil {
		t.Fatal(err)
	}

	c := GetMetrics()
	if c == nil {
		t.Fatal("GetMetrics() = nil after Prometheus()")
	}
	if got := testutil.ToFloat64(c.RendersTotal.WithLabelValues("200", "document")); got != 1 {
		t.Errorf("renders_total{200,document} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.RendersTotal.WithLabelValues("404", "none")); got != 1 {
		t.Errorf("renders_total{404,none} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.NothingRendered); got != 1 {
		t.Errorf("nothing_rendered_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.RenderErrors.WithLabelValues("hook")); got != 1 {
		t.Errorf("render_errors_total{hook} = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.RenderDuration); got != 3 {
		t.Errorf("render_duration_seconds series = %d, want 3", got)
	}
}

func TestPrometheusPassesErrorsThrough(t *testing.T) {
	resetGlobalMetricsForTest()
	mw := Prometheus(WithRegistry(prometheus.NewRegistry()))

	boom := stderrors.New("boom")
	_, err := run(mw, nil, boom)
	if err != boom {
		t.Fatalf("Handle() error = %v, want boom", err)
	}
	if got := testutil.ToFloat64(GetMetrics().RenderErrors.WithLabelValues("internal")); got != 1 {
		t.Errorf("render_errors_total{internal} = %v, want 1", got)
	}
}

func TestPrometheusReusesMetrics(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()
	Prometheus(WithRegistry(reg))
	first := GetMetrics()
	Prometheus(WithRegistry(reg))
	if GetMetrics().RendersTotal != first.RendersTotal {
		t.Error("a second Prometheus() call must not register new metrics")
	}
}

func TestCategorizeError(t *testing.T) {
	tests := map[string]error{
		"usage":    errors.New("E207"),
		"hook":     errors.New("E402"),
		"config":   errors.New("E120"),
		"internal": stderrors.New("plain"),
	}
	for want, err := range tests {
		if got := categorizeError(err); got != want {
			t.Errorf("categorizeError(%v) = %q, want %q", err, got, want)
		}
	}
}

type recordedSpan struct {
	name  string
	attrs []attribute.KeyValue
}

type recordingTracer struct {
	noop.Tracer
	mu    sync.Mutex
	spans []recordedSpan
}

func (r *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	r.mu.Lock()
	r.spans = append(r.spans, recordedSpan{name: name, attrs: cfg.Attributes()})
	r.mu.Unlock()
	return r.Tracer.Start(ctx, name, opts...)
}

type recordingProvider struct {
	noop.TracerProvider
	tracer *recordingTracer
}

func (p recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return p.tracer
}

func TestOpenTelemetryStartsSpan(t *testing.T) {
	tracer := &recordingTracer{}
	mw := OpenTelemetry(
		WithTracerProvider(recordingProvider{tracer: tracer}),
		WithAttributeExtractor(func(*render.Info) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("test.attr", "ok")}
		}),
	)

	info := &render.Info{InvocationID: "inv-1", URL: "/movie/1", Start: time.Now()}
	var sawSpan bool
	err := mw.Handle(context.Background(), info, func(ctx context.Context) error {
		sawSpan = SpanFromContext(ctx) != nil
		info.Outcome = &render.Outcome{StatusCode: 200}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !sawSpan {
		t.Error("next should receive the span context")
	}
	if len(tracer.spans) != 1 || tracer.spans[0].name != "vps.render" {
		t.Fatalf("spans = %+v", tracer.spans)
	}

	want := map[attribute.Key]string{
		"vps.url":           "/movie/1",
		"vps.invocation_id": "inv-1",
		"test.attr":         "ok",
	}
	for _, kv := range tracer.spans[0].attrs {
		if v, ok := want[kv.Key]; ok && kv.Value.AsString() == v {
			delete(want, kv.Key)
		}
	}
	if len(want) != 0 {
		t.Errorf("missing span attributes %v", want)
	}
}

func TestOpenTelemetryFilter(t *testing.T) {
	tracer := &recordingTracer{}
	mw := OpenTelemetry(
		WithTracerProvider(recordingProvider{tracer: tracer}),
		WithFilter(func(info *render.Info) bool { return info.URL != "/healthz" }),
	)

	info := &render.Info{URL: "/healthz", Start: time.Now()}
	boom := stderrors.New("boom")
	err := mw.Handle(context.Background(), info, func(context.Context) error { return boom })
	if err != boom {
		t.Errorf("Handle() error = %v", err)
	}
	if len(tracer.spans) != 0 {
		t.Errorf("filtered invocations must not be traced, got %d spans", len(tracer.spans))
	}
}
