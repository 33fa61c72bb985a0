// Package observability wires OpenTelemetry tracing for folio. Remote
// content calls and the serve command's HTTP handlers open spans through
// the helpers here; when tracing is disabled a no-op tracer is used.
package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config holds telemetry configuration
type Config struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`     // otlp-http, none
	Endpoint    string  `yaml:"endpoint"`     // localhost:4318
	ServiceName string  `yaml:"service_name"` // folio
	SampleRate  float64 `yaml:"sample_rate"`  // 0.0 to 1.0
}

// Provider wraps the OpenTelemetry TracerProvider
type Provider struct {
	tp      *sdktrace.TracerProvider
	tracer  trace.Tracer
	enabled bool
}

var (
	providerMu     sync.RWMutex
	globalProvider = &Provider{tracer: noop.NewTracerProvider().Tracer("")}
)

// Init installs the tracer provider described by cfg. A disabled config
// installs a no-op tracer, which is also the state before Init runs.
func Init(ctx context.Context, cfg Config) error {
	if !cfg.Enabled {
		setProvider(&Provider{tracer: noop.NewTracerProvider().Tracer("")})
		return nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "folio"
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return err
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	setProvider(&Provider{tp: tp, tracer: tp.Tracer(cfg.ServiceName), enabled: true})
	return nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "otlp-http", "otlp", "":
		exp, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("create OTLP exporter: %w", err)
		}
		return exp, nil
	case "none":
		return discardExporter{}, nil
	default:
		return nil, fmt.Errorf("unknown exporter: %s", cfg.Exporter)
	}
}

// newSampler samples every trace at rate 1 or above and a ratio of traces
// below it. Rates outside [0, 1) sample everything.
func newSampler(rate float64) sdktrace.Sampler {
	if rate >= 0 && rate < 1 {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
	return sdktrace.AlwaysSample()
}

// UseTracerProvider installs an already-built provider. Tests use it with an
// in-memory span recorder.
func UseTracerProvider(tp *sdktrace.TracerProvider) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	setProvider(&Provider{tp: tp, tracer: tp.Tracer("folio"), enabled: true})
}

func setProvider(p *Provider) {
	providerMu.Lock()
	globalProvider = p
	providerMu.Unlock()
}

func provider() *Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return globalProvider
}

// Shutdown flushes and stops the telemetry provider
func Shutdown(ctx context.Context) error {
	p := provider()
	if p.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.tp.Shutdown(ctx)
}

// Tracer returns the global tracer
func Tracer() trace.Tracer {
	return provider().tracer
}

// Enabled returns whether tracing is enabled
func Enabled() bool {
	return provider().enabled
}

// discardExporter drops every span. It keeps spans (and trace IDs in logs)
// without shipping them anywhere.
type discardExporter struct{}

func (discardExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }

func (discardExporter) Shutdown(context.Context) error { return nil }
