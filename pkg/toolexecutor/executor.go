package toolexecutor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

const (
	// DefaultTimeout bounds a single tool call when the definition sets none.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxOutputBytes caps the string result handed back to the caller.
	DefaultMaxOutputBytes = 16 * 1024
)

// ToolParameter defines a parameter for a tool
type ToolParameter struct {
	Name        string        `json:"name"`
	Type        string        `json:"type"`
	Description string        `json:"description"`
	Required    bool          `json:"required"`
	Default     interface{}   `json:"default,omitempty"`
	Items       string        `json:"items,omitempty"`
	Enum        []interface{} `json:"enum,omitempty"`
}

// ToolDefinition defines a tool's metadata and handler.
// Exactly one of Handler and AsyncHandler must be set.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters,omitempty"`
	// Schema, when set, replaces the schema generated from Parameters.
	Schema       map[string]interface{} `json:"schema,omitempty"`
	Handler      ToolHandler            `json:"-"`
	AsyncHandler AsyncToolHandler       `json:"-"`
	Timeout      time.Duration          `json:"-"`
}

// ToolHandler is the function signature for synchronous tools.
type ToolHandler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// AsyncToolHandler starts the tool and returns a channel that yields exactly one outcome.
type AsyncToolHandler func(ctx context.Context, params map[string]interface{}) <-chan ToolOutcome

// ToolOutcome is the completion value of an asynchronous tool.
type ToolOutcome struct {
	Output interface{}
	Err    error
}

type registeredTool struct {
	def    ToolDefinition
	schema *gojsonschema.Schema
}

// Auditor receives every completed tool call, including rejected arguments.
type Auditor interface {
	RecordToolCall(ctx context.Context, tool string, duration time.Duration, err error)
}

// ToolExecutor is the tool registry. Lookups are safe for concurrent use.
type ToolExecutor struct {
	tools          map[string]*registeredTool
	order          []string
	policy         *ToolPolicy
	maxOutputBytes int
	auditor        Auditor
	mu             sync.RWMutex
}

// Option configures a ToolExecutor.
type Option func(*ToolExecutor)

// WithPolicy hides tools the policy does not allow.
func WithPolicy(policy *ToolPolicy) Option {
	return func(te *ToolExecutor) {
		te.policy = policy
	}
}

// WithMaxOutputBytes overrides the output cap. Zero or less disables truncation.
func WithMaxOutputBytes(n int) Option {
	return func(te *ToolExecutor) {
		te.maxOutputBytes = n
	}
}

// WithAuditor reports each call to a.
func WithAuditor(a Auditor) Option {
	return func(te *ToolExecutor) {
		te.auditor = a
	}
}

// New creates a new ToolExecutor
func New(opts ...Option) *ToolExecutor {
	te := &ToolExecutor{
		tools:          make(map[string]*registeredTool),
		maxOutputBytes: DefaultMaxOutputBytes,
	}
	for _, opt := range opts {
		opt(te)
	}

	log.Debug().Msg("Tool executor initialized")

	return te
}

// RegisterTool registers a tool, replacing any tool already registered under the
// same name. A replaced tool keeps its original position in ListTools.
func (te *ToolExecutor) RegisterTool(def ToolDefinition) error {
	if err := validateToolDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := compileSchema(def)
	if err != nil {
		return fmt.Errorf("failed to compile schema for %s: %w", def.Name, err)
	}

	te.mu.Lock()
	defer te.mu.Unlock()

	if _, exists := te.tools[def.Name]; !exists {
		te.order = append(te.order, def.Name)
	} else {
		log.Debug().Str("tool", def.Name).Msg("Tool re-registered, previous definition replaced")
	}
	te.tools[def.Name] = &registeredTool{def: def, schema: schema}

	log.Debug().Str("tool", def.Name).Msg("Tool registered")

	return nil
}

// UnregisterTool removes a tool
func (te *ToolExecutor) UnregisterTool(name string) {
	te.mu.Lock()
	defer te.mu.Unlock()

	if _, ok := te.tools[name]; !ok {
		return
	}
	delete(te.tools, name)
	for i, n := range te.order {
		if n == name {
			te.order = append(te.order[:i], te.order[i+1:]...)
			break
		}
	}
}

// GetTool returns an invocation wrapper for the named tool.
func (te *ToolExecutor) GetTool(name string) (*Invocation, error) {
	te.mu.RLock()
	tool, ok := te.tools[name]
	policy := te.policy
	maxOutput := te.maxOutputBytes
	auditor := te.auditor
	te.mu.RUnlock()

	if !ok {
		return nil, newToolError(name, ErrUnknownTool, nil)
	}
	if !policy.IsToolAllowed(name) {
		return nil, newToolError(name, ErrUnknownTool, fmt.Errorf("tool is not enabled"))
	}

	return &Invocation{
		def:            tool.def,
		schema:         tool.schema,
		maxOutputBytes: maxOutput,
		auditor:        auditor,
	}, nil
}

// ListTools returns the visible tool definitions in registration order.
func (te *ToolExecutor) ListTools() []ToolDefinition {
	te.mu.RLock()
	defer te.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(te.order))
	for _, name := range te.order {
		if !te.policy.IsToolAllowed(name) {
			continue
		}
		defs = append(defs, te.tools[name].def)
	}

	return defs
}

// GetToolCount returns the number of registered tools
func (te *ToolExecutor) GetToolCount() int {
	te.mu.RLock()
	defer te.mu.RUnlock()

	return len(te.tools)
}

// Execute looks up a tool and calls it in one step.
func (te *ToolExecutor) Execute(ctx context.Context, name string, params map[string]interface{}) (string, error) {
	inv, err := te.GetTool(name)
	if err != nil {
		return "", err
	}
	return inv.Call(ctx, params)
}

func validateToolDefinition(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if def.Handler == nil && def.AsyncHandler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}
	if def.Handler != nil && def.AsyncHandler != nil {
		return fmt.Errorf("tool %s sets both a sync and an async handler", def.Name)
	}

	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %q for %s", param.Type, param.Name)
		}
		if param.Items != "" && !validTypes[param.Items] {
			return fmt.Errorf("invalid items type %q for %s", param.Items, param.Name)
		}
	}

	return nil
}
