package coretools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harun/reactor/pkg/sandbox"
	"github.com/harun/reactor/pkg/toolexecutor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	got    sandbox.RunRequest
	result sandbox.RunResult
	err    error
}

func (r *recordingRunner) Run(ctx context.Context, req sandbox.RunRequest) (sandbox.RunResult, error) {
	r.got = req
	return r.result, r.err
}

func (r *recordingRunner) Backend() sandbox.Backend { return sandbox.BackendHost }

func TestCodeExec(t *testing.T) {
	runner := &recordingRunner{result: sandbox.RunResult{Stdout: "42\n", ExitCode: 0}}
	registry := toolexecutor.New()
	require.NoError(t, RegisterCoreTools(registry, Options{WorkspaceRoot: t.TempDir(), Sandbox: runner}))

	out, err := registry.Execute(context.Background(), "code_exec", map[string]interface{}{
		"code":    "print(6*7)",
		"timeout": 1.5,
		"memory":  "256m",
		"network": true,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"stdout":"42\n","stderr":"","exit_code":0,"timed_out":false}`, out)

	assert.Equal(t, "print(6*7)", runner.got.Code)
	assert.Equal(t, 1500*time.Millisecond, runner.got.Timeout)
	assert.Equal(t, "256m", runner.got.Memory)
	assert.True(t, runner.got.Network)
}

func TestCodeExec_Errors(t *testing.T) {
	runner := &recordingRunner{err: sandbox.ErrEmptyCode}
	registry := toolexecutor.New()
	require.NoError(t, RegisterCoreTools(registry, Options{WorkspaceRoot: t.TempDir(), Sandbox: runner}))

	_, err := registry.Execute(context.Background(), "code_exec", map[string]interface{}{"code": " "})
	assert.True(t, errors.Is(err, toolexecutor.ErrToolExecution))
	assert.True(t, errors.Is(err, sandbox.ErrEmptyCode))

	_, err = registry.Execute(context.Background(), "code_exec", map[string]interface{}{})
	assert.True(t, errors.Is(err, toolexecutor.ErrArgsValidation))
}

func TestCodeExecParams_Request(t *testing.T) {
	assert.Equal(t, defaultSnippetTimeout, codeExecParams{}.request().Timeout)
	assert.Equal(t, maxSnippetTimeout, codeExecParams{Timeout: 3600}.request().Timeout)
}
