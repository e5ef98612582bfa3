package coretools

import (
	"context"
	"time"

	"github.com/harun/reactor/pkg/sandbox"
	"github.com/harun/reactor/pkg/toolexecutor"
)

const (
	defaultSnippetTimeout = 5 * time.Second
	maxSnippetTimeout     = 2 * time.Minute
)

type codeExecParams struct {
	Code    string  `json:"code"`
	Image   string  `json:"image"`
	Timeout float64 `json:"timeout"`
	Memory  string  `json:"memory"`
	CPUs    string  `json:"cpus"`
	Network bool    `json:"network"`
}

func (p codeExecParams) request() sandbox.RunRequest {
	timeout := defaultSnippetTimeout
	if p.Timeout > 0 {
		timeout = time.Duration(p.Timeout * float64(time.Second))
	}
	if timeout > maxSnippetTimeout {
		timeout = maxSnippetTimeout
	}

	return sandbox.RunRequest{
		Code:    p.Code,
		Timeout: timeout,
		Image:   p.Image,
		Memory:  p.Memory,
		CPUs:    p.CPUs,
		Network: p.Network,
	}
}

// codeExecTool runs Python snippets through runner.
func codeExecTool(runner sandbox.Runner) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "code_exec",
		Description: "Execute Python code in an isolated sandbox and return stdout, stderr and the exit code",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "code", Type: "string", Description: "The Python code to execute", Required: true},
			{Name: "image", Type: "string", Description: "Docker image to use (docker sandbox only)"},
			{Name: "timeout", Type: "number", Description: "Timeout in seconds", Default: defaultSnippetTimeout.Seconds()},
			{Name: "memory", Type: "string", Description: "Memory limit such as '512m' (docker sandbox only)"},
			{Name: "cpus", Type: "string", Description: "CPU limit such as '0.5' (docker sandbox only)"},
			{Name: "network", Type: "boolean", Description: "Enable network access (docker sandbox only)", Default: false},
		},
		Timeout: maxSnippetTimeout + 30*time.Second,
		AsyncHandler: func(ctx context.Context, params map[string]interface{}) <-chan toolexecutor.ToolOutcome {
			out := make(chan toolexecutor.ToolOutcome, 1)
			go func() {
				var p codeExecParams
				if err := decodeParams(params, &p); err != nil {
					out <- toolexecutor.ToolOutcome{Err: err}
					return
				}
				result, err := runner.Run(ctx, p.request())
				if err != nil {
					out <- toolexecutor.ToolOutcome{Err: err}
					return
				}
				out <- toolexecutor.ToolOutcome{Output: result}
			}()
			return out
		},
	}
}
