package agent

import (
	"strings"

	"github.com/harun/reactor/pkg/toolexecutor"
)

const systemPreamble = "You are a helpful assistant. You have access to the following tools.\n" +
	"When a function is needed, respond with a JSON *array* called `plan`, " +
	"where each item is {\"tool\": \"<name>\", \"args\": {...}}.\n\n" +
	"Here are the available tools:\n"

const correctiveInstruction = "Your previous reply did not contain a valid plan. " +
	"If you need a tool, reply with a JSON array of {\"tool\": \"<name>\", \"args\": {...}} objects. " +
	"Otherwise reply with your final answer."

// looksLikePlanAttempt reports whether a reply that failed plan extraction
// still appears to be reaching for one.
func looksLikePlanAttempt(reply string) bool {
	return strings.Contains(reply, "[") || strings.Contains(reply, `"tool"`)
}

// SystemPrompt renders the preamble describing every tool and its arguments.
func SystemPrompt(tools []toolexecutor.ToolDefinition) string {
	var sb strings.Builder
	sb.WriteString(systemPreamble)

	for _, tool := range tools {
		sb.WriteString("- tool: ")
		sb.WriteString(tool.Name)
		sb.WriteString("\n  description: ")
		sb.WriteString(tool.Description)
		sb.WriteString("\n")

		docs := tool.ArgumentDocs()
		if len(docs) == 0 {
			continue
		}
		sb.WriteString("  args:\n")
		for _, doc := range docs {
			sb.WriteString("    ")
			sb.WriteString(doc[0])
			sb.WriteString(": ")
			sb.WriteString(doc[1])
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
