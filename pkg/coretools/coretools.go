// Package coretools provides the leaf tools an agent acts through: workspace
// file access, code execution and web access.
package coretools

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/harun/reactor/pkg/sandbox"
	"github.com/harun/reactor/pkg/toolexecutor"
)

// ToolRegistrar is the part of the tool registry core tools need.
type ToolRegistrar interface {
	RegisterTool(def toolexecutor.ToolDefinition) error
}

// Options configures core tool registration.
type Options struct {
	// WorkspaceRoot confines every file tool. Relative paths resolve against it.
	WorkspaceRoot string

	// Sandbox runs code_exec snippets. code_exec is not registered without one.
	Sandbox sandbox.Runner

	Web WebOptions
}

// WebOptions configures web_search and web_scrape.
type WebOptions struct {
	UserAgent      string
	Timeout        time.Duration
	BlockedDomains []string
	AllowLocalhost bool

	// SearchURL is the DuckDuckGo HTML endpoint; overridable for tests.
	SearchURL string

	// Renderer loads pages that need JavaScript. Defaults to a headless Chrome.
	Renderer Renderer
}

// Names lists every core tool in registration order.
var Names = []string{
	"file_read", "file_write", "list_directory", "find_path", "file_search",
	"code_exec", "web_search", "web_scrape",
}

// RegisterCoreTools registers the file, code and web tools.
func RegisterCoreTools(registry ToolRegistrar, opts Options) error {
	if registry == nil {
		return errors.New("tool registry is required")
	}

	root := strings.TrimSpace(opts.WorkspaceRoot)
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace root: %w", err)
	}

	ws := workspace{root: root}
	web := newWebClient(opts.Web)

	tools := []toolexecutor.ToolDefinition{
		fileReadTool(ws),
		fileWriteTool(ws),
		listDirectoryTool(ws),
		findPathTool(ws),
		fileSearchTool(ws),
	}
	if opts.Sandbox != nil {
		tools = append(tools, codeExecTool(opts.Sandbox))
	}
	tools = append(tools, webSearchTool(web), webScrapeTool(web))

	for _, tool := range tools {
		if err := registry.RegisterTool(tool); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", tool.Name, err)
		}
	}
	return nil
}

type workspace struct {
	root string
}

// resolve maps a tool-supplied path into the workspace, rejecting anything
// that escapes it. An empty path means the root itself.
func (ws workspace) resolve(pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" || pathValue == "." {
		return ws.root, nil
	}
	if strings.Contains(pathValue, "://") {
		return "", fmt.Errorf("path must be a local file")
	}

	candidate := pathValue
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(ws.root, candidate)
	}
	candidate = filepath.Clean(candidate)

	rel, err := filepath.Rel(ws.root, candidate)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside workspace root", pathValue)
	}
	return candidate, nil
}

func newRestyClient(opts WebOptions) *resty.Client {
	return resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetRetryCount(0)
}

func decodeParams(params map[string]interface{}, out interface{}) error {
	jsonData, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	if err := json.Unmarshal(jsonData, out); err != nil {
		return fmt.Errorf("failed to unmarshal params: %w", err)
	}
	return nil
}
