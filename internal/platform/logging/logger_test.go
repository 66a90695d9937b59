package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestNew_JSONCarriesFieldsAndComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Writer: &buf, Level: LevelInfo, Fields: []any{"service", "football-scoreboard"}})

	logger.Named("cache").Info("cache warm-up complete", "loaded", 3, "error", errors.New("partial"))
	logger.Debug("dropped below level")

	out := buf.String()
	for _, want := range []string{
		`"component":"cache"`,
		`"msg":"cache warm-up complete"`,
		`"loaded":3`,
		`"error":"partial"`,
		`"service":"football-scoreboard"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %s:\n%s", want, out)
		}
	}
	if strings.Contains(out, "dropped below level") {
		t.Fatalf("debug entry written at info level:\n%s", out)
	}
}

func TestLogger_ContextAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONWriter(&buf, LevelDebug)

	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0xab},
		SpanID:     trace.SpanID{0xcd},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)
	logger.WarnContext(ctx, "poll failed")

	if !strings.Contains(buf.String(), `"trace_id":"`+spanCtx.TraceID().String()+`"`) {
		t.Fatalf("expected trace id in output:\n%s", buf.String())
	}
}

func TestLogger_OddArgsAndNilReceiver(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONWriter(&buf, LevelInfo)
	logger.Info("odd", 42, "x", "dangling")

	out := buf.String()
	if !strings.Contains(out, `"arg":"x"`) || !strings.Contains(out, `"dangling":null`) {
		t.Fatalf("unexpected field pairing:\n%s", out)
	}

	var nilLogger *Logger
	nilLogger.Info("no panic")
	nilLogger.Named("x").With("k", "v").Warn("still no panic")
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatJSON},
		{in: "JSON", want: FormatJSON},
		{in: " console ", want: FormatConsole},
		{in: "xml", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("ParseFormat(%q)=(%q,%v) want=(%q, err=%v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestSync_OnlyOnce(t *testing.T) {
	logger := NewNop()
	if err := logger.Sync(); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if err := logger.Sync(); err != nil {
		t.Fatalf("second sync: %v", err)
	}
}
