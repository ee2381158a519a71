// Package tracer adapts OpenTelemetry spans for statement execution and
// schema reflection.
package tracer

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanExecute  = "quarry.execute"
	SpanQuery    = "quarry.query"
	SpanDescribe = "quarry.describe"
	SpanTables   = "quarry.list_tables"
)

// Tracer starts spans.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span is an active span.
type Span interface {
	SetAttributes(attrs ...attribute.KeyValue)
	RecordError(err error)
	SetStatus(code codes.Code, description string)
	End()
}

// NoopTracer is a tracer that does nothing. It is the default.
type NoopTracer struct{}

// StartSpan returns the context unchanged with a no-op span.
func (n *NoopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, &NoopSpan{}
}

// NoopSpan is a span that does nothing.
type NoopSpan struct{}

// SetAttributes does nothing.
func (n *NoopSpan) SetAttributes(_ ...attribute.KeyValue) {}

// RecordError does nothing.
func (n *NoopSpan) RecordError(_ error) {}

// SetStatus does nothing.
func (n *NoopSpan) SetStatus(_ codes.Code, _ string) {}

// End does nothing.
func (n *NoopSpan) End() {}

// OtelTracer wraps an OpenTelemetry tracer.
type OtelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer creates a new OpenTelemetry tracer adapter.
// The provided tracer must not be nil.
func NewOtelTracer(tracer trace.Tracer) *OtelTracer {
	return &OtelTracer{tracer: tracer}
}

// StartSpan starts a new OpenTelemetry span.
func (t *OtelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, &OtelSpan{span: span}
}

// OtelSpan wraps an OpenTelemetry span.
type OtelSpan struct {
	span trace.Span
}

// SetAttributes sets OpenTelemetry attributes on the span.
func (s *OtelSpan) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// RecordError records an error on the OpenTelemetry span.
func (s *OtelSpan) RecordError(err error) {
	s.span.RecordError(err)
}

// SetStatus sets the status of the OpenTelemetry span.
func (s *OtelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

// End completes the OpenTelemetry span.
func (s *OtelSpan) End() {
	s.span.End()
}

// QueryMetadata describes one executed statement. Bound values are never
// recorded, only their number.
type QueryMetadata struct {
	SQL          string
	Bindings     int
	Duration     time.Duration
	RowsAffected int64
	Error        error
	// Database is the dialect name (postgres, mysql, sqlite, sqlserver).
	Database  string
	Operation string
	Table     string
}

// AddQueryAttributes adds database semantic convention attributes to a span.
// See https://opentelemetry.io/docs/specs/semconv/database/
func AddQueryAttributes(span Span, meta *QueryMetadata) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", meta.Database),
		attribute.String("db.statement", meta.SQL),
		attribute.String("db.operation", meta.Operation),
		attribute.Int("db.bindings", meta.Bindings),
		attribute.Float64("db.duration_ms", float64(meta.Duration.Microseconds())/1000.0),
	}
	if meta.Table != "" {
		attrs = append(attrs, attribute.String("db.table", meta.Table))
	}
	if meta.RowsAffected > 0 {
		attrs = append(attrs, attribute.Int64("db.rows_affected", meta.RowsAffected))
	}
	span.SetAttributes(attrs...)
	setStatus(span, meta.Error)
}

// SchemaMetadata describes one catalog read.
type SchemaMetadata struct {
	Database string
	Schema   string
	Table    string
	Columns  int
	Indexes  int
	Duration time.Duration
	Error    error
}

// AddSchemaAttributes records a describe or list-tables call on a span.
func AddSchemaAttributes(span Span, meta *SchemaMetadata) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", meta.Database),
		attribute.String("db.schema", meta.Schema),
		attribute.Float64("db.duration_ms", float64(meta.Duration.Microseconds())/1000.0),
	}
	if meta.Table != "" {
		attrs = append(attrs,
			attribute.String("db.table", meta.Table),
			attribute.Int("quarry.columns", meta.Columns),
			attribute.Int("quarry.indexes", meta.Indexes),
		)
	}
	span.SetAttributes(attrs...)
	setStatus(span, meta.Error)
}

func setStatus(span Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// DetectOperation returns SELECT, INSERT, UPDATE, DELETE or UNKNOWN for a statement.
func DetectOperation(sql string) string {
	sql = strings.TrimSpace(strings.ToUpper(sql))
	switch {
	case strings.HasPrefix(sql, "SELECT"), strings.HasPrefix(sql, "WITH"), strings.HasPrefix(sql, "("):
		return "SELECT"
	case strings.HasPrefix(sql, "INSERT"):
		return "INSERT"
	case strings.HasPrefix(sql, "UPDATE"):
		return "UPDATE"
	case strings.HasPrefix(sql, "DELETE"):
		return "DELETE"
	}
	return "UNKNOWN"
}
