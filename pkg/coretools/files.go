package coretools

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/harun/reactor/pkg/toolexecutor"
)

const defaultMaxHits = 50

// SearchHit is one file_search match.
type SearchHit struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

type fileReadParams struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

func fileReadTool(ws workspace) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "file_read",
		Description: "Read a file, optionally a line range; lines are numbered",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "path", Type: "string", Description: "File path, relative to the workspace", Required: true},
			{Name: "start_line", Type: "integer", Description: "First line to return (1-based)"},
			{Name: "end_line", Type: "integer", Description: "Last line to return (inclusive)"},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			var p fileReadParams
			if err := decodeParams(params, &p); err != nil {
				return nil, err
			}
			target, err := ws.resolve(p.Path)
			if err != nil {
				return nil, err
			}
			return readNumberedLines(target, p.StartLine, p.EndLine)
		},
	}
}

// readNumberedLines returns lines start..end as "N | text". Out of range
// bounds are clamped.
func readNumberedLines(path string, start, end int) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := splitLines(string(data))

	if start < 1 {
		start = 1
	}
	if end <= 0 || end > len(lines) {
		end = len(lines)
	}

	out := []string{}
	for i := start - 1; i < end; i++ {
		out = append(out, fmt.Sprintf("%d | %s", i+1, lines[i]))
	}
	return out, nil
}

type fileWriteParams struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func fileWriteTool(ws workspace) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "file_write",
		Description: "Write content to a file, creating parent directories and overwriting any existing file",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "path", Type: "string", Description: "File path, relative to the workspace", Required: true},
			{Name: "content", Type: "string", Description: "Content to write", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			var p fileWriteParams
			if err := decodeParams(params, &p); err != nil {
				return nil, err
			}
			target, err := ws.resolve(p.Path)
			if err != nil {
				return nil, err
			}
			if target == ws.root {
				return nil, fmt.Errorf("path is required")
			}

			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return nil, err
			}
			if err := os.WriteFile(target, []byte(p.Content), 0644); err != nil {
				return nil, err
			}
			return fmt.Sprintf("File written successfully to %s", p.Path), nil
		},
	}
}

type listDirectoryParams struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
}

func listDirectoryTool(ws workspace) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "list_directory",
		Description: "List files and directories within a path",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "path", Type: "string", Description: "Directory to list; defaults to the workspace root"},
			{Name: "recursive", Type: "boolean", Description: "List contents recursively", Default: false},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			var p listDirectoryParams
			if err := decodeParams(params, &p); err != nil {
				return nil, err
			}
			target, err := ws.resolve(p.Path)
			if err != nil {
				return nil, err
			}
			return listDirectory(ctx, target, p.Recursive)
		},
	}
}

func listDirectory(ctx context.Context, dir string, recursive bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("path is not a valid directory: %s", dir)
	}

	results := []string{}
	if !recursive {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			results = append(results, filepath.Join(dir, entry.Name()))
		}
		return results, nil
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path != dir {
			results = append(results, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

type findPathParams struct {
	Pattern string `json:"pattern"`
	Root    string `json:"root"`
	Type    string `json:"type"`
}

func findPathTool(ws workspace) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "find_path",
		Description: "Find files or directories whose name matches a glob pattern",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "pattern", Type: "string", Description: "Name pattern, e.g. 'notes.txt' or '*.log'", Required: true},
			{Name: "root", Type: "string", Description: "Directory to search from; defaults to the workspace root"},
			{Name: "type", Type: "string", Description: "What to match: file, dir or all", Enum: []interface{}{"file", "dir", "all"}},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			var p findPathParams
			if err := decodeParams(params, &p); err != nil {
				return nil, err
			}
			root, err := ws.resolve(p.Root)
			if err != nil {
				return nil, err
			}
			return findPaths(ctx, root, p.Pattern, p.Type)
		},
	}
}

func findPaths(ctx context.Context, root, pattern, kind string) ([]string, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	if kind == "" {
		kind = "all"
	}

	matches := []string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == root {
			return nil
		}
		if (d.IsDir() && kind == "file") || (!d.IsDir() && kind == "dir") {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

type fileSearchParams struct {
	Regex      string `json:"regex"`
	Path       string `json:"path"`
	MaxHits    int    `json:"max_hits"`
	IgnoreCase bool   `json:"ignore_case"`
}

func fileSearchTool(ws workspace) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "file_search",
		Description: "Regex search across workspace files",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "regex", Type: "string", Description: "RE2 regular expression", Required: true},
			{Name: "path", Type: "string", Description: "Directory to search; defaults to the workspace root"},
			{Name: "max_hits", Type: "integer", Description: "Stop after this many matches", Default: defaultMaxHits},
			{Name: "ignore_case", Type: "boolean", Description: "Case-insensitive matching", Default: false},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			var p fileSearchParams
			if err := decodeParams(params, &p); err != nil {
				return nil, err
			}
			root, err := ws.resolve(p.Path)
			if err != nil {
				return nil, err
			}
			expr := p.Regex
			if p.IgnoreCase {
				expr = "(?i)" + expr
			}
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("invalid regex: %w", err)
			}
			if p.MaxHits <= 0 {
				p.MaxHits = defaultMaxHits
			}
			return searchFiles(ctx, root, re, p.MaxHits)
		},
	}
}

var errEnoughHits = errors.New("enough hits")

// searchFiles walks root in lexical order and returns the first maxHits
// matching lines. Unreadable files are skipped.
func searchFiles(ctx context.Context, root string, re *regexp.Regexp, maxHits int) ([]SearchHit, error) {
	hits := []SearchHit{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for lineNo := 1; scanner.Scan(); lineNo++ {
			line := strings.TrimRight(scanner.Text(), "\r")
			if !re.MatchString(line) {
				continue
			}
			hits = append(hits, SearchHit{File: path, Line: lineNo, Text: line})
			if len(hits) >= maxHits {
				return errEnoughHits
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errEnoughHits) {
		return nil, err
	}
	return hits, nil
}

func splitLines(content string) []string {
	if content == "" {
		return []string{}
	}
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}
