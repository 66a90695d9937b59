// Package tracing starts child spans for the scoreboard layers. It never opens a
// root span: work reached from an untraced request (health checks, /metrics)
// stays untraced.
package tracing

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var noopSpan = trace.SpanFromContext(context.Background())

type Tracer struct {
	tracer trace.Tracer
	allow  func(name string) bool
}

// New names the instrumentation scope. A nil allow admits every span name.
func New(scope string, allow func(name string) bool) Tracer {
	return Tracer{tracer: otel.Tracer(scope), allow: allow}
}

// Prefix admits span names starting with prefix.
func Prefix(prefix string) func(string) bool {
	return func(name string) bool { return strings.HasPrefix(name, prefix) }
}

func (t Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if strings.TrimSpace(name) == "" || t.tracer == nil {
		return ctx, noopSpan
	}
	if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
		return ctx, noopSpan
	}
	if t.allow != nil && !t.allow(name) {
		return ctx, noopSpan
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Fail marks span as errored. Nil errors are ignored.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
