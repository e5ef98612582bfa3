package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(MetricsHandler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsHandler_ExposesRecordedValues(t *testing.T) {
	RecordToolExecution("obs_ok_tool", 10*time.Millisecond, true)
	RecordToolExecution("obs_bad_tool", 10*time.Millisecond, false)
	RecordAgentRun("obs_provider", time.Second, true)
	RecordAgentTurns("exhausted", 5)
	RecordModelCall("obs_provider", 200*time.Millisecond)
	SetProviderCooldown("obs_provider", true)
	SetMemoryEntries(42)
	RecordMemorySearch(time.Millisecond)
	RecordMemoryWrite(time.Millisecond)

	body := scrape(t)

	assert.Contains(t, body, `reactor_tool_calls_total{status="success",tool="obs_ok_tool"} 1`)
	assert.Contains(t, body, `reactor_tool_calls_total{status="failure",tool="obs_bad_tool"} 1`)
	assert.Contains(t, body, `reactor_tool_failures_total{tool="obs_bad_tool"} 1`)
	assert.Contains(t, body, `reactor_agent_runs_total{provider="obs_provider",status="success"} 1`)
	assert.Contains(t, body, `reactor_agent_turns_count{status="exhausted"} 1`)
	assert.Contains(t, body, `reactor_model_call_duration_seconds_count{provider="obs_provider"} 1`)
	assert.Contains(t, body, `reactor_model_cooldown_active{provider="obs_provider"} 1`)
	assert.Contains(t, body, "reactor_memory_records 42")
	assert.Contains(t, body, "reactor_memory_query_duration_seconds_count")
	assert.Contains(t, body, "reactor_memory_add_duration_seconds_count")
	assert.Contains(t, body, "go_goroutines")
}

func TestEnsureRegistered_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		EnsureRegistered()
		EnsureRegistered()
	})
}
