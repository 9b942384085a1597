package telemetry

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTracer_ExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	shutdown, err := InitTracer("agent-launcher-test", logger,
		WithWriter(&buf),
		WithPrettyPrint(false),
		WithServiceVersion("v0.0.1-test"),
		WithSyncExport(),
	)
	if err != nil {
		t.Fatalf("InitTracer() error = %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "orchestrator.provision")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"orchestrator.provision", "agent-launcher-test", "v0.0.1-test"} {
		if !strings.Contains(out, want) {
			t.Errorf("exported span missing %q: %s", want, out)
		}
	}
}
