package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTracer(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var spans, logs bytes.Buffer
	shutdown, err := InitTracer("courtside", "0.1.0", slog.New(slog.NewTextHandler(&logs, nil)),
		WithWriter(&spans), WithSyncExport())
	if err != nil {
		t.Fatalf("InitTracer() error = %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "toolloop.attempt")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}

	out := spans.String()
	if !strings.Contains(out, `"Name":"toolloop.attempt"`) {
		t.Errorf("span not exported: %s", out)
	}
	if !strings.Contains(out, "courtside") {
		t.Error("service name missing from exported resource")
	}
	if !strings.Contains(logs.String(), "OpenTelemetry initialized") {
		t.Errorf("logs = %s", logs.String())
	}
}
