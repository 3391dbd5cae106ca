// Package telemetry provides per-stage tracing and run metrics.
//
// Tracing uses OpenTelemetry with a stdout exporter when enabled and a
// no-op tracer otherwise. Metrics live in a private Prometheus registry
// and are written once per run in the node-exporter textfile format.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// ServiceName identifies spans and metrics of this tool
	ServiceName = "libertas"

	tracerName = "github.com/ppiankov/libertas/pipeline"
)

// Telemetry bundles the tracer and the metrics registry of one run
type Telemetry struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider // nil when tracing is disabled
	registry *prometheus.Registry
	metrics  *Metrics
	logger   *slog.Logger
}

// New creates run telemetry. When tracing is enabled spans are
// pretty-printed to out as they end.
func New(tracing bool, out io.Writer, logger *slog.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	registry := prometheus.NewRegistry()
	metrics, err := NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	t := &Telemetry{
		tracer:   noop.NewTracerProvider().Tracer(tracerName),
		registry: registry,
		metrics:  metrics,
		logger:   logger,
	}

	if !tracing {
		return t, nil
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(out),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	// Syncer keeps span output ordered with the stage log lines
	t.provider = sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", ServiceName),
		)),
	)
	t.tracer = t.provider.Tracer(tracerName)

	logger.Debug("tracing initialized", slog.String("exporter", "stdout"))
	return t, nil
}

// Metrics returns the run metrics
func (t *Telemetry) Metrics() *Metrics {
	return t.metrics
}

// StartStage opens a span for a pipeline stage. The returned function ends
// the span, records err on it and observes the stage duration.
func (t *Telemetry) StartStage(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	start := time.Now()
	ctx, span := t.tracer.Start(ctx, stage, trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		elapsed := time.Since(start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		t.metrics.StageDuration.WithLabelValues(stage).Set(elapsed.Seconds())
		t.logger.Debug("stage finished", "stage", stage, "duration", elapsed, "error", err)
	}
}

// WriteMetrics writes all metrics to path in the textfile exposition format
func (t *Telemetry) WriteMetrics(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	if err := prometheus.WriteToTextfile(path, t.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}

// Shutdown flushes pending spans
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
