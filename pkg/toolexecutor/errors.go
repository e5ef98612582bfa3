package toolexecutor

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTool is returned when no tool is registered under a name.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrArgsValidation is returned when arguments do not satisfy the tool schema.
	ErrArgsValidation = errors.New("args validation failed")
	// ErrToolExecution is returned when the tool itself fails or times out.
	ErrToolExecution = errors.New("tool execution failed")
)

// ToolError carries the failing tool name along with the error kind.
// errors.Is matches both the kind sentinel and the underlying cause.
type ToolError struct {
	Tool string
	Kind error
	Err  error
}

func (e *ToolError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Tool)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Tool, e.Err)
}

func (e *ToolError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newToolError(tool string, kind, err error) *ToolError {
	return &ToolError{Tool: tool, Kind: kind, Err: err}
}
