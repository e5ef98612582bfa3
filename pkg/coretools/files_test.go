package coretools

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/harun/reactor/pkg/toolexecutor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*toolexecutor.ToolExecutor, string) {
	t.Helper()
	root := t.TempDir()
	registry := toolexecutor.New()
	require.NoError(t, RegisterCoreTools(registry, Options{WorkspaceRoot: root}))
	return registry, root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func decodeJSON[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestRegisterCoreTools(t *testing.T) {
	registry := toolexecutor.New()
	require.NoError(t, RegisterCoreTools(registry, Options{WorkspaceRoot: t.TempDir()}))

	var names []string
	for _, def := range registry.ListTools() {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{"file_read", "file_write", "list_directory", "find_path", "file_search", "web_search", "web_scrape"}, names)

	assert.Error(t, RegisterCoreTools(nil, Options{}))
}

func TestWorkspaceResolve(t *testing.T) {
	ws := workspace{root: "/work"}

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: "/work"},
		{in: "a/b.txt", want: "/work/a/b.txt"},
		{in: "/work/c.txt", want: "/work/c.txt"},
		{in: "a/../b.txt", want: "/work/b.txt"},
		{in: "../etc/passwd", wantErr: true},
		{in: "/etc/passwd", wantErr: true},
		{in: "http://example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ws.resolve(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileWriteAndRead(t *testing.T) {
	registry, root := newTestRegistry(t)
	ctx := context.Background()

	out, err := registry.Execute(ctx, "file_write", map[string]interface{}{
		"path":    "notes/todo.txt",
		"content": "one\ntwo\nthree\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "File written successfully to notes/todo.txt", out)

	data, err := os.ReadFile(filepath.Join(root, "notes", "todo.txt"))
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree\n", string(data))

	out, err = registry.Execute(ctx, "file_read", map[string]interface{}{"path": "notes/todo.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1 | one", "2 | two", "3 | three"}, decodeJSON[[]string](t, out))

	out, err = registry.Execute(ctx, "file_read", map[string]interface{}{
		"path": "notes/todo.txt", "start_line": 2, "end_line": 9,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2 | two", "3 | three"}, decodeJSON[[]string](t, out))
}

func TestFileRead_Errors(t *testing.T) {
	registry, root := newTestRegistry(t)
	ctx := context.Background()
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0755))

	_, err := registry.Execute(ctx, "file_read", map[string]interface{}{"path": "missing.txt"})
	assert.True(t, errors.Is(err, toolexecutor.ErrToolExecution))

	_, err = registry.Execute(ctx, "file_read", map[string]interface{}{"path": "dir"})
	assert.True(t, errors.Is(err, toolexecutor.ErrToolExecution))

	_, err = registry.Execute(ctx, "file_read", map[string]interface{}{"path": "../outside.txt"})
	assert.True(t, errors.Is(err, toolexecutor.ErrToolExecution))

	_, err = registry.Execute(ctx, "file_read", map[string]interface{}{"path": 5})
	assert.True(t, errors.Is(err, toolexecutor.ErrArgsValidation))
}

func TestListDirectory(t *testing.T) {
	registry, root := newTestRegistry(t)
	ctx := context.Background()
	writeFile(t, filepath.Join(root, "a.txt"), "a")
	writeFile(t, filepath.Join(root, "sub", "b.txt"), "b")

	out, err := registry.Execute(ctx, "list_directory", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "sub"),
	}, decodeJSON[[]string](t, out))

	out, err = registry.Execute(ctx, "list_directory", map[string]interface{}{"recursive": true})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "sub"),
		filepath.Join(root, "sub", "b.txt"),
	}, decodeJSON[[]string](t, out))

	_, err = registry.Execute(ctx, "list_directory", map[string]interface{}{"path": "a.txt"})
	assert.True(t, errors.Is(err, toolexecutor.ErrToolExecution))
}

func TestFindPath(t *testing.T) {
	registry, root := newTestRegistry(t)
	ctx := context.Background()
	writeFile(t, filepath.Join(root, "app.log"), "")
	writeFile(t, filepath.Join(root, "logs", "old.log"), "")
	writeFile(t, filepath.Join(root, "logs", "readme.md"), "")
	require.NoError(t, os.Mkdir(filepath.Join(root, "x.log"), 0755))

	out, err := registry.Execute(ctx, "find_path", map[string]interface{}{"pattern": "*.log"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "app.log"),
		filepath.Join(root, "logs", "old.log"),
		filepath.Join(root, "x.log"),
	}, decodeJSON[[]string](t, out))

	out, err = registry.Execute(ctx, "find_path", map[string]interface{}{"pattern": "*.log", "type": "file"})
	require.NoError(t, err)
	assert.Len(t, decodeJSON[[]string](t, out), 2)

	out, err = registry.Execute(ctx, "find_path", map[string]interface{}{"pattern": "*.log", "type": "dir"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "x.log")}, decodeJSON[[]string](t, out))

	_, err = registry.Execute(ctx, "find_path", map[string]interface{}{"pattern": "*", "type": "socket"})
	assert.True(t, errors.Is(err, toolexecutor.ErrArgsValidation))

	_, err = registry.Execute(ctx, "find_path", map[string]interface{}{"pattern": "[", "type": "all"})
	assert.True(t, errors.Is(err, toolexecutor.ErrToolExecution))
}

func TestFileSearch(t *testing.T) {
	registry, root := newTestRegistry(t)
	ctx := context.Background()
	writeFile(t, filepath.Join(root, "a.go"), "package a\n// TODO: fix\nfunc A() {}\n")
	writeFile(t, filepath.Join(root, "b", "b.go"), "package b\n// todo later\n")
	writeFile(t, filepath.Join(root, ".git", "HEAD"), "TODO in git\n")

	out, err := registry.Execute(ctx, "file_search", map[string]interface{}{"regex": "TODO"})
	require.NoError(t, err)
	assert.Equal(t, []SearchHit{
		{File: filepath.Join(root, "a.go"), Line: 2, Text: "// TODO: fix"},
	}, decodeJSON[[]SearchHit](t, out))

	out, err = registry.Execute(ctx, "file_search", map[string]interface{}{"regex": "todo", "ignore_case": true})
	require.NoError(t, err)
	assert.Len(t, decodeJSON[[]SearchHit](t, out), 2)

	out, err = registry.Execute(ctx, "file_search", map[string]interface{}{"regex": "package", "max_hits": 1})
	require.NoError(t, err)
	assert.Len(t, decodeJSON[[]SearchHit](t, out), 1)

	_, err = registry.Execute(ctx, "file_search", map[string]interface{}{"regex": "("})
	assert.True(t, errors.Is(err, toolexecutor.ErrToolExecution))
}
