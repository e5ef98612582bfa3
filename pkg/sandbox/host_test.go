package sandbox

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPythonRunner(t *testing.T) *HostRunner {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	r, err := NewHostRunner(DefaultConfig())
	require.NoError(t, err)
	return r
}

func TestNewHostRunner(t *testing.T) {
	r, err := NewHostRunner(Config{Backend: BackendDocker})
	require.NoError(t, err)
	assert.Equal(t, BackendHost, r.Backend())
	assert.Equal(t, "python3", r.config.Interpreter)

	_, err = NewHostRunner(Config{Timeout: -1})
	assert.True(t, errors.Is(err, ErrInvalidTimeout))
}

func TestHostRunner_EmptyCode(t *testing.T) {
	r, err := NewHostRunner(DefaultConfig())
	require.NoError(t, err)

	_, err = r.Run(context.Background(), RunRequest{Code: "  \n"})
	assert.True(t, errors.Is(err, ErrEmptyCode))
}

func TestHostRunner_MissingInterpreter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interpreter = "reactor-no-such-interpreter"
	r, err := NewHostRunner(cfg)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), RunRequest{Code: "print(1)"})
	assert.Error(t, err)
}

func TestHostRunner_Run(t *testing.T) {
	r := newPythonRunner(t)

	result, err := r.Run(context.Background(), RunRequest{Code: `
		import sys
		print("hello")
		print("oops", file=sys.stderr)
	`})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", result.Stdout)
	assert.Equal(t, "oops\n", result.Stderr)
	assert.Equal(t, 0, result.ExitCode)
	assert.False(t, result.TimedOut)
}

func TestHostRunner_NonZeroExit(t *testing.T) {
	r := newPythonRunner(t)

	result, err := r.Run(context.Background(), RunRequest{Code: "import sys\nsys.exit(3)"})
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
	assert.False(t, result.TimedOut)
}

func TestHostRunner_Timeout(t *testing.T) {
	r := newPythonRunner(t)

	result, err := r.Run(context.Background(), RunRequest{
		Code:    "import time\ntime.sleep(5)",
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, result.TimedOut)
	assert.Equal(t, -1, result.ExitCode)
	assert.Equal(t, "Execution timed out", result.Stderr)
	assert.Less(t, result.Duration, 3*time.Second)
}
