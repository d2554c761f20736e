package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	exporterConnectTimeout = 3 * time.Second
	metricExportInterval   = 5 * time.Second
)

// Endpoint is where one signal is exported to. Grpc wins when both are set.
type Endpoint struct {
	Grpc    string            `json:"grpc_endpoint"`
	Http    string            `json:"http_endpoint"`
	Headers map[string]string `json:"headers"`
}

func (e Endpoint) enabled() bool {
	return e.Grpc != "" || e.Http != ""
}

func (e Endpoint) transport() string {
	switch {
	case e.Grpc != "":
		return "grpc"
	case e.Http != "":
		return "http"
	default:
		return "none"
	}
}

// Config is the schema of telemetry.json5, a signal without an endpoint stays local.
type Config struct {
	Otlp struct {
		Traces  Endpoint `json:"traces"`
		Metrics Endpoint `json:"metrics"`
	} `json:"otlp"`
}

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
}

// newExporter picks the grpc or http constructor of a signal depending on e.
func newExporter[T any](
	ctx context.Context,
	signal string,
	e Endpoint,
	grpc func(ctx context.Context) (T, error),
	http func(ctx context.Context) (T, error),
) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, exporterConnectTimeout)
	defer cancel()

	endpoint := e.Http
	create := http
	if e.Grpc != "" {
		endpoint = e.Grpc
		create = grpc
	}
	slog.Info(
		"otlp exporter initialized",
		"signal", signal,
		"type", e.transport(),
		"endpoint", endpoint,
		"headers", len(e.Headers) > 0,
	)
	return create(ctx)
}

func newTraceProvider(ctx context.Context, r *resource.Resource, cfg Config) (*trace.TracerProvider, error) {
	e := cfg.Otlp.Traces
	if !e.enabled() {
		slog.Debug("trace export disabled, no endpoint configured")
		return trace.NewTracerProvider(trace.WithResource(r)), nil
	}
	exporter, err := newExporter[trace.SpanExporter](ctx, "traces", e,
		func(ctx context.Context) (trace.SpanExporter, error) {
			return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpointURL(e.Grpc), otlptracegrpc.WithHeaders(e.Headers))
		},
		func(ctx context.Context) (trace.SpanExporter, error) {
			return otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(e.Http), otlptracehttp.WithHeaders(e.Headers))
		},
	)
	if err != nil {
		return nil, err
	}
	return trace.NewTracerProvider(trace.WithBatcher(exporter), trace.WithResource(r)), nil
}

func newMetricProvider(ctx context.Context, r *resource.Resource, cfg Config) (*metric.MeterProvider, error) {
	e := cfg.Otlp.Metrics
	if !e.enabled() {
		slog.Debug("metric export disabled, no endpoint configured")
		return metric.NewMeterProvider(metric.WithResource(r)), nil
	}
	exporter, err := newExporter[metric.Exporter](ctx, "metrics", e,
		func(ctx context.Context) (metric.Exporter, error) {
			return otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpointURL(e.Grpc), otlpmetricgrpc.WithHeaders(e.Headers))
		},
		func(ctx context.Context) (metric.Exporter, error) {
			return otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(e.Http), otlpmetrichttp.WithHeaders(e.Headers))
		},
	)
	if err != nil {
		return nil, err
	}
	return metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(metricExportInterval))),
		metric.WithResource(r),
	), nil
}
