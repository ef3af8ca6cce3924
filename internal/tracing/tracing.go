// Package tracing builds the OpenTelemetry tracer provider used to record one
// span per dispatched JSON-RPC request. Tracing is off unless an exporter is
// selected; the disabled provider hands out no-op tracers.
package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation scope of spans emitted by the server.
const TracerName = "github.com/ggoodman/hello-mcp"

// ExporterType selects where spans are sent.
type ExporterType string

const (
	ExporterNone   ExporterType = "none"
	ExporterStdout ExporterType = "stdout"
	ExporterOTLP   ExporterType = "otlp"
)

// ParseExporterType validates a user-supplied exporter name.
func ParseExporterType(s string) (ExporterType, error) {
	switch ExporterType(s) {
	case "", ExporterNone:
		return ExporterNone, nil
	case ExporterStdout, ExporterOTLP:
		return ExporterType(s), nil
	default:
		return "", fmt.Errorf("unsupported exporter type: %q", s)
	}
}

// Config holds tracing configuration.
type Config struct {
	Exporter       ExporterType
	OTLPEndpoint   string    // host:port of an OTLP/HTTP collector
	ServiceName    string    // defaults to "hellomcp"
	ServiceVersion string
	Output         io.Writer // stdout exporter destination; defaults to os.Stdout
}

// Provider owns the SDK tracer provider, if any.
type Provider struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// New builds a Provider. With ExporterNone (or an empty exporter) it returns a
// provider whose tracer records nothing.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Exporter == "" || cfg.Exporter == ExporterNone {
		return &Provider{tracer: noop.NewTracerProvider().Tracer(TracerName)}, nil
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = "hellomcp"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(name),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	return &Provider{
		tracer:   tp.Tracer(TracerName),
		provider: tp,
	}, nil
}

func createExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterStdout:
		var opts []stdouttrace.Option
		if cfg.Output != nil {
			opts = append(opts, stdouttrace.WithWriter(cfg.Output))
		}
		return stdouttrace.New(opts...)

	case ExporterOTLP:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithInsecure(),
		}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		return otlptracehttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.Exporter)
	}
}

// Tracer returns the tracer to hand to the dispatcher.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider != nil {
		return p.provider.Shutdown(ctx)
	}
	return nil
}
