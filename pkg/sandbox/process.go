package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	scriptName      = "snippet.py"
	timedOutMessage = "Execution timed out"
)

// newScratchDir creates a private directory holding the snippet file.
func newScratchDir(code string) (string, error) {
	id, err := gonanoid.New(10)
	if err != nil {
		return "", fmt.Errorf("failed to generate scratch id: %w", err)
	}

	dir := filepath.Join(os.TempDir(), "reactor-sandbox-"+id)
	if err := os.Mkdir(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create scratch dir: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, scriptName), []byte(Dedent(code)), 0600); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("failed to write snippet: %w", err)
	}
	return dir, nil
}

// runProcess runs cmd under timeout. Running out of time is reported in the
// result; only a failure to start the process is an error.
func runProcess(ctx context.Context, timeout time.Duration, dir, name string, args ...string) (RunResult, error) {
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		result := RunResult{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: -1,
			TimedOut: true,
			Duration: duration,
		}
		if result.Stderr == "" {
			result.Stderr = timedOutMessage
		}
		return result, nil
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return RunResult{}, fmt.Errorf("failed to run %s: %w", name, err)
		}
		exitCode = exitErr.ExitCode()
	}

	return RunResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		Duration: duration,
	}, nil
}
