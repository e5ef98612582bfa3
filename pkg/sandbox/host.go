package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// HostRunner runs snippets with the host interpreter in a scratch directory.
// It offers no isolation beyond the timeout.
type HostRunner struct {
	config Config
}

// NewHostRunner creates a new host runner
func NewHostRunner(config Config) (*HostRunner, error) {
	config.Backend = BackendHost
	if config.Interpreter == "" {
		config.Interpreter = DefaultConfig().Interpreter
	}
	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &HostRunner{config: config}, nil
}

// Backend returns BackendHost.
func (h *HostRunner) Backend() Backend {
	return BackendHost
}

// Run writes the snippet to a scratch directory and runs it.
func (h *HostRunner) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if strings.TrimSpace(req.Code) == "" {
		return RunResult{}, ErrEmptyCode
	}

	dir, err := newScratchDir(req.Code)
	if err != nil {
		return RunResult{}, err
	}
	defer os.RemoveAll(dir)

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = h.config.Timeout
	}

	result, err := runProcess(ctx, timeout, dir, h.config.Interpreter, filepath.Join(dir, scriptName))
	if err != nil {
		return RunResult{}, err
	}

	log.Debug().
		Str("backend", string(BackendHost)).
		Str("interpreter", h.config.Interpreter).
		Int("exit_code", result.ExitCode).
		Bool("timed_out", result.TimedOut).
		Dur("duration", result.Duration).
		Msg("Snippet executed")

	return result, nil
}
