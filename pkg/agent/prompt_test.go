package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/harun/reactor/pkg/toolexecutor"
	"github.com/stretchr/testify/assert"
)

func TestSystemPrompt(t *testing.T) {
	handler := func(ctx context.Context, params map[string]interface{}) (interface{}, error) { return nil, nil }
	tools := []toolexecutor.ToolDefinition{
		{
			Name:        "file_read",
			Description: "Read a file",
			Parameters: []toolexecutor.ToolParameter{
				{Name: "path", Type: "string", Description: "File path", Required: true},
				{Name: "start_line", Type: "integer", Description: "First line"},
			},
			Handler: handler,
		},
		{Name: "now", Description: "Current time", Handler: handler},
	}

	want := "You are a helpful assistant. You have access to the following tools.\n" +
		"When a function is needed, respond with a JSON *array* called `plan`, " +
		"where each item is {\"tool\": \"<name>\", \"args\": {...}}.\n\n" +
		"Here are the available tools:\n" +
		"- tool: file_read\n" +
		"  description: Read a file\n" +
		"  args:\n" +
		"    path: File path\n" +
		"    start_line: First line\n" +
		"- tool: now\n" +
		"  description: Current time\n"

	assert.Equal(t, want, SystemPrompt(tools))
}

func TestRenderTranscript(t *testing.T) {
	turns := []Turn{
		UserTurn{Content: "hi"},
		AssistantTurn{Content: `[{"tool":"x","args":{}}]`},
		ToolResultTurn{Tool: "x", Output: "42"},
		ErrorTurn{Err: errors.New("backend down")},
	}

	want := "user: hi\n" +
		"assistant: [{\"tool\":\"x\",\"args\":{}}]\n" +
		"tool_output: 42\n" +
		"error: backend down\n"
	assert.Equal(t, want, RenderTranscript(turns))
}

func TestLooksLikePlanAttempt(t *testing.T) {
	assert.True(t, looksLikePlanAttempt(`[{"tool": `))
	assert.True(t, looksLikePlanAttempt(`{"tool": "x"}`))
	assert.False(t, looksLikePlanAttempt("The answer is 4."))
}
