package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestPropagateToLogger(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-123")
	ctx = WithRunID(ctx, "run-456")
	ctx = WithAgentID(ctx, "agent-789")

	var buf bytes.Buffer
	logger := PropagateToLogger(ctx, zerolog.New(&buf))
	logger.Info().Msg("test message")

	output := buf.String()
	for _, want := range []string{`"trace_id":"trace-123"`, `"run_id":"run-456"`, `"agent_id":"agent-789"`} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %s in log output, got %s", want, output)
		}
	}
}

func TestLoggerFromContextOmitsMissing(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-xyz")

	var buf bytes.Buffer
	logger := LoggerFromContext(ctx, zerolog.New(&buf))
	logger.Info().Msg("test")

	output := buf.String()
	if !strings.Contains(output, "trace-xyz") {
		t.Error("Trace ID not in log output")
	}
	if strings.Contains(output, "run_id") {
		t.Error("Run ID should not be logged when absent")
	}
}
