package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Trace exporters
const (
	ExporterNone = "none"
	ExporterLog  = "log"
)

const serviceName = "releasebot"

// NewTracerProvider creates the SDK tracer provider for the named exporter.
// "none" records spans without exporting them.
func NewTracerProvider(exporter string, logger *logrus.Logger) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName))),
	}

	switch exporter {
	case ExporterNone:
	case ExporterLog:
		opts = append(opts, sdktrace.WithBatcher(NewLogExporter(logger)))
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", exporter)
	}

	return sdktrace.NewTracerProvider(opts...), nil
}

// LogExporter writes finished spans to a logrus logger. Failed spans are
// logged at warn, the rest at debug.
type LogExporter struct {
	logger *logrus.Logger
}

// NewLogExporter creates a new span exporter backed by logger
func NewLogExporter(logger *logrus.Logger) *LogExporter {
	return &LogExporter{logger: logger}
}

// ExportSpans implements sdktrace.SpanExporter
func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		fields := logrus.Fields{
			"span":     span.Name(),
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
			"duration": span.EndTime().Sub(span.StartTime()).Round(time.Microsecond).String(),
		}
		for _, attr := range span.Attributes() {
			fields[string(attr.Key)] = attr.Value.AsInterface()
		}

		entry := e.logger.WithFields(fields)
		if status := span.Status(); status.Code == codes.Error {
			entry.WithField("error", status.Description).Warn("Span failed")
			continue
		}
		entry.Debug("Span finished")
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter
func (e *LogExporter) Shutdown(ctx context.Context) error {
	return nil
}
