package httpapi

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/riskibarqy/football-scoreboard/internal/platform/tracing"
)

// Only handler spans are recorded; middleware and response helpers ride on them.
var apiTracer = tracing.New("football-scoreboard/internal/interfaces/httpapi", tracing.Prefix("httpapi.Handler."))

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return apiTracer.Start(ctx, name)
}
