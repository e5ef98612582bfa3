package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Backend selects where code runs.
type Backend string

const (
	// BackendHost runs code as a child process of reactor.
	BackendHost Backend = "host"
	// BackendDocker runs code in an ephemeral container.
	BackendDocker Backend = "docker"
)

// Config defines sandbox configuration
type Config struct {
	Backend Backend `json:"backend"`

	// Interpreter is the host binary used to run snippets.
	Interpreter string `json:"interpreter"`

	// Image is the container image for the docker backend.
	Image string `json:"image"`

	// Timeout applies when a request sets none.
	Timeout time.Duration `json:"timeout"`

	// Memory and CPUs are docker resource limits, e.g. "512m" and "0.5".
	Memory string `json:"memory"`
	CPUs   string `json:"cpus"`

	// PidsLimit caps the number of processes in the container.
	PidsLimit int `json:"pids_limit"`
}

// RunRequest is one snippet execution.
type RunRequest struct {
	Code    string        `json:"code"`
	Timeout time.Duration `json:"timeout"`
	// Image, Memory and CPUs override the config for the docker backend.
	Image  string `json:"image,omitempty"`
	Memory string `json:"memory,omitempty"`
	CPUs   string `json:"cpus,omitempty"`
	// Network enables networking for the docker backend.
	Network bool `json:"network"`
}

// RunResult is the outcome of a snippet. A non-zero exit code is a result,
// not an error.
type RunResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	TimedOut bool          `json:"timed_out"`
	Duration time.Duration `json:"-"`
}

// Runner executes code snippets.
type Runner interface {
	// Run executes req.Code and reports its output.
	Run(ctx context.Context, req RunRequest) (RunResult, error)

	// Backend returns the backend name.
	Backend() Backend
}

// DefaultConfig returns a default sandbox configuration
func DefaultConfig() Config {
	return Config{
		Backend:     BackendHost,
		Interpreter: "python3",
		Image:       "python:3.11-slim",
		Timeout:     5 * time.Second,
		Memory:      "512m",
		CPUs:        "0.5",
		PidsLimit:   128,
	}
}

// ValidateConfig validates a sandbox configuration
func ValidateConfig(cfg Config) error {
	switch cfg.Backend {
	case BackendHost:
		if strings.TrimSpace(cfg.Interpreter) == "" {
			return ErrInterpreterRequired
		}
	case BackendDocker:
		if strings.TrimSpace(cfg.Image) == "" {
			return ErrDockerImageRequired
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, cfg.Backend)
	}

	if cfg.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if cfg.PidsLimit < 0 {
		return ErrInvalidProcessLimit
	}

	return nil
}

// New creates the runner for cfg.Backend.
func New(cfg Config) (Runner, error) {
	switch cfg.Backend {
	case BackendDocker:
		return NewDockerRunner(cfg)
	default:
		return NewHostRunner(cfg)
	}
}

// Dedent removes the longest common leading whitespace from every non-blank
// line, so indented snippets run as top-level code.
func Dedent(code string) string {
	lines := strings.Split(code, "\n")

	prefix := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			prefix = indent
			first = false
			continue
		}
		for !strings.HasPrefix(indent, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}

	if prefix == "" {
		return code
	}
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = strings.TrimLeft(line, " \t")
			continue
		}
		lines[i] = strings.TrimPrefix(line, prefix)
	}
	return strings.Join(lines, "\n")
}
