// Package telemetry wires structured logging and tracing for crawler runs.
package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InitSlog installs the default slog handler. debug raises the level so
// per-link and per-block trace lines become visible.
func InitSlog(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// Setup installs a process-wide tracer provider for the given service name.
// There is no remote collector in this repo: when spanExporter is non-nil,
// spans are batched to it; otherwise they are recorded in-process and
// discarded. It uses the otel SDK but no OTLP exporter stack.
func Setup(serviceName string, spanExporter tracesdk.SpanExporter) (func(context.Context) error, error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	opts := []tracesdk.TracerProviderOption{tracesdk.WithResource(r)}
	if spanExporter != nil {
		opts = append(opts, tracesdk.WithBatcher(spanExporter))
	}

	provider := tracesdk.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

// fileSpanExporter appends a one-line-per-span JSON record to w, for
// operators who want a local trace file without a collector. Used by
// `crawler --trace <file>`.
type fileSpanExporter struct {
	w io.Writer
}

// NewFileSpanExporter builds a span exporter backed by w.
func NewFileSpanExporter(w io.Writer) tracesdk.SpanExporter {
	return fileSpanExporter{w: w}
}

func (e fileSpanExporter) ExportSpans(ctx context.Context, spans []tracesdk.ReadOnlySpan) error {
	enc := json.NewEncoder(e.w)
	for _, s := range spans {
		record := map[string]any{
			"name":       s.Name(),
			"start":      s.StartTime(),
			"end":        s.EndTime(),
			"status":     s.Status().Code.String(),
			"attributes": s.Attributes(),
		}
		if err := enc.Encode(record); err != nil {
			return err
		}
	}
	return nil
}

func (e fileSpanExporter) Shutdown(ctx context.Context) error {
	return nil
}
