// Package toolexecutor is the tool registry: it registers structured tools,
// validates their arguments and invokes them.
//
// Invariants:
// - Tool names are unique; re-registration replaces the definition in place.
// - Arguments are schema-validated before execution.
// - ListTools preserves registration order.
// - Failures are *ToolError values matching ErrUnknownTool, ErrArgsValidation
//   or ErrToolExecution. The registry never retries.
//
// Usage:
//
//	exec := toolexecutor.New()
//	_ = exec.RegisterTool(toolexecutor.ToolDefinition{
//		Name:        "echo",
//		Description: "Echo input",
//		Parameters:  []toolexecutor.ToolParameter{{Name: "text", Type: "string", Description: "text", Required: true}},
//		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) { return params["text"], nil },
//	})
//	inv, _ := exec.GetTool("echo")
//	out, err := inv.Call(ctx, map[string]interface{}{"text": "hi"})
package toolexecutor
