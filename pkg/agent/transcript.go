package agent

import (
	"encoding/json"
	"strings"
)

// Role identifies the author of a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleError     Role = "error"
)

// Turn is one transcript entry. The set of implementations is closed.
type Turn interface {
	Role() Role
	Text() string
	turn()
}

// UserTurn is a prompt from the user, or a corrective instruction.
type UserTurn struct {
	Content string `json:"content"`
}

// AssistantTurn is a raw model reply.
type AssistantTurn struct {
	Content string `json:"content"`
}

// ToolResultTurn is the outcome of one plan step.
type ToolResultTurn struct {
	Tool   string `json:"tool"`
	Output string `json:"output"`
	Failed bool   `json:"failed"`
}

// ErrorTurn records the backend failure that ended a run.
type ErrorTurn struct {
	Err error `json:"-"`
}

func (UserTurn) Role() Role       { return RoleUser }
func (AssistantTurn) Role() Role  { return RoleAssistant }
func (ToolResultTurn) Role() Role { return RoleTool }
func (ErrorTurn) Role() Role      { return RoleError }

func (t UserTurn) Text() string       { return t.Content }
func (t AssistantTurn) Text() string  { return t.Content }
func (t ToolResultTurn) Text() string { return t.Output }

func (t ErrorTurn) Text() string {
	if t.Err == nil {
		return ""
	}
	return t.Err.Error()
}

func (UserTurn) turn()       {}
func (AssistantTurn) turn()  {}
func (ToolResultTurn) turn() {}
func (ErrorTurn) turn()      {}

// StepResult is the outcome of one plan step. Err is kept as a value and only
// turned into text at the transcript boundary.
type StepResult struct {
	Tool   string `json:"tool"`
	Output string `json:"output,omitempty"`
	Err    error  `json:"-"`
}

// Failed reports whether the step produced an error.
func (r StepResult) Failed() bool {
	return r.Err != nil
}

// Text returns the output, or the error message for a failed step.
func (r StepResult) Text() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Output
}

// MarshalJSON renders Err as its message.
func (r StepResult) MarshalJSON() ([]byte, error) {
	type step struct {
		Tool   string `json:"tool"`
		Output string `json:"output,omitempty"`
		Error  string `json:"error,omitempty"`
	}
	s := step{Tool: r.Tool, Output: r.Output}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	return json.Marshal(s)
}

// Turn converts the result into its transcript entry.
func (r StepResult) Turn() ToolResultTurn {
	return ToolResultTurn{Tool: r.Tool, Output: r.Text(), Failed: r.Failed()}
}

// RenderTranscript renders turns as "role: text" lines. Tool turns use the
// label tool_output.
func RenderTranscript(turns []Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		label := string(t.Role())
		if t.Role() == RoleTool {
			label = "tool_output"
		}
		sb.WriteString(label)
		sb.WriteString(": ")
		sb.WriteString(t.Text())
		sb.WriteString("\n")
	}
	return sb.String()
}
