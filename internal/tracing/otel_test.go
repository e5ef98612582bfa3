package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSpan_StoresTraceID(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, InitOpenTelemetry(ctx, Config{ServiceName: "reactor-test", Version: "0.0.0"}))
	t.Cleanup(func() { _ = ShutdownOpenTelemetry(context.Background()) })

	spanCtx, span := StartSpan(ctx, "reactor.test", "unit")
	defer span.End()

	assert.True(t, span.SpanContext().IsValid())
	assert.Equal(t, span.SpanContext().TraceID().String(), GetTraceID(spanCtx))
}

func TestStartSpan_KeepsExistingTraceID(t *testing.T) {
	ctx := WithTraceID(context.Background(), "req-abc")

	spanCtx, span := StartSpan(ctx, "reactor.test", "unit")
	defer span.End()

	assert.Equal(t, "req-abc", GetTraceID(spanCtx))
}

func TestInitOpenTelemetry_Reinitializes(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, InitOpenTelemetry(ctx, Config{ServiceName: "reactor-test"}))
	require.NoError(t, InitOpenTelemetry(ctx, Config{ServiceName: "ignored"}))
	require.NoError(t, ShutdownOpenTelemetry(ctx))
	require.NoError(t, ShutdownOpenTelemetry(ctx))

	require.NoError(t, InitOpenTelemetry(ctx, Config{ServiceName: "reactor-test", SampleRatio: 0.5}))
	require.NoError(t, ShutdownOpenTelemetry(ctx))
}
