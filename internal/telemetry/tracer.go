// Package telemetry sets up OpenTelemetry tracing for the launcher.
package telemetry

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

type tracerOptions struct {
	writer      io.Writer
	prettyPrint bool
	version     string
	syncExport  bool
}

// Option configures InitTracer.
type Option func(*tracerOptions)

// WithWriter sends spans to w instead of stdout.
func WithWriter(w io.Writer) Option {
	return func(o *tracerOptions) { o.writer = w }
}

// WithPrettyPrint indents exported spans.
func WithPrettyPrint(pretty bool) Option {
	return func(o *tracerOptions) { o.prettyPrint = pretty }
}

// WithServiceVersion records the build version on every span.
func WithServiceVersion(v string) Option {
	return func(o *tracerOptions) { o.version = v }
}

// WithSyncExport exports each span as it ends instead of batching.
func WithSyncExport() Option {
	return func(o *tracerOptions) { o.syncExport = true }
}

// InitTracer installs a global tracer provider exporting to stdout and
// returns its shutdown function.
func InitTracer(serviceName string, logger *slog.Logger, opts ...Option) (func(context.Context) error, error) {
	o := tracerOptions{prettyPrint: true}
	for _, opt := range opts {
		opt(&o)
	}

	var exporterOpts []stdouttrace.Option
	if o.prettyPrint {
		exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
	}
	if o.writer != nil {
		exporterOpts = append(exporterOpts, stdouttrace.WithWriter(o.writer))
	}
	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return nil, err
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	if o.version != "" {
		attrs = append(attrs, semconv.ServiceVersion(o.version))
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", attrs...),
	)
	if err != nil {
		return nil, err
	}

	processor := sdktrace.WithBatcher(exporter)
	if o.syncExport {
		processor = sdktrace.WithSyncer(exporter)
	}
	tp := sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	logger.Info("OpenTelemetry initialized", slog.String("service", serviceName))

	return tp.Shutdown, nil
}
