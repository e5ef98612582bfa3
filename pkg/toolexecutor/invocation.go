package toolexecutor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/harun/reactor/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// Invocation is a validated entry point to one registered tool.
type Invocation struct {
	def            ToolDefinition
	schema         *gojsonschema.Schema
	maxOutputBytes int
	auditor        Auditor
}

// Name returns the tool name.
func (inv *Invocation) Name() string {
	return inv.def.Name
}

// Definition returns the tool definition behind the invocation.
func (inv *Invocation) Definition() ToolDefinition {
	return inv.def
}

// Call validates params, runs the tool and waits for its result whether the
// handler is synchronous or asynchronous. Failures are *ToolError values.
func (inv *Invocation) Call(ctx context.Context, params map[string]interface{}) (string, error) {
	startTime := time.Now()
	output, err := inv.call(ctx, params, startTime)
	if inv.auditor != nil {
		inv.auditor.RecordToolCall(ctx, inv.def.Name, time.Since(startTime), err)
	}
	return output, err
}

func (inv *Invocation) call(ctx context.Context, params map[string]interface{}, startTime time.Time) (string, error) {
	name := inv.def.Name

	if err := validateParameters(inv.schema, params); err != nil {
		log.Debug().Str("tool", name).Err(err).Msg("Parameter validation failed")
		observability.RecordToolExecution(name, time.Since(startTime), false)
		return "", newToolError(name, ErrArgsValidation, err)
	}

	timeout := inv.def.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Debug().Str("tool", name).Msg("Executing tool")

	select {
	case outcome := <-inv.start(callCtx, params):
		duration := time.Since(startTime)
		if outcome.Err != nil {
			log.Debug().Str("tool", name).Dur("duration", duration).Err(outcome.Err).Msg("Tool execution failed")
			observability.RecordToolExecution(name, duration, false)
			return "", newToolError(name, ErrToolExecution, outcome.Err)
		}

		output, truncated := truncateOutput(Stringify(outcome.Output), inv.maxOutputBytes)
		log.Debug().
			Str("tool", name).
			Dur("duration", duration).
			Bool("truncated", truncated).
			Msg("Tool execution completed")
		observability.RecordToolExecution(name, duration, true)
		return output, nil

	case <-callCtx.Done():
		duration := time.Since(startTime)
		log.Warn().Str("tool", name).Dur("duration", duration).Msg("Tool execution timeout")
		observability.RecordToolExecution(name, duration, false)
		return "", newToolError(name, ErrToolExecution, fmt.Errorf("after %v: %w", timeout, callCtx.Err()))
	}
}

// start launches the tool. A panic while starting an async tool, or inside a
// sync handler, becomes a failed outcome. Panics in goroutines an async tool
// spawns itself are the tool's own concern.
func (inv *Invocation) start(ctx context.Context, params map[string]interface{}) (outcome <-chan ToolOutcome) {
	if inv.def.AsyncHandler != nil {
		defer func() {
			if r := recover(); r != nil {
				outcome = failedOutcome(fmt.Errorf("tool panicked: %v", r))
			}
		}()
		ch := inv.def.AsyncHandler(ctx, params)
		if ch == nil {
			return failedOutcome(fmt.Errorf("async tool returned no outcome channel"))
		}
		return ch
	}

	out := make(chan ToolOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				out <- ToolOutcome{Err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		result, err := inv.def.Handler(ctx, params)
		out <- ToolOutcome{Output: result, Err: err}
	}()
	return out
}

func failedOutcome(err error) <-chan ToolOutcome {
	out := make(chan ToolOutcome, 1)
	out <- ToolOutcome{Err: err}
	return out
}

// Stringify coerces a tool result to the string handed to the model.
// Structured values are rendered as JSON.
func Stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func truncateOutput(output string, maxSize int) (string, bool) {
	if maxSize <= 0 || len(output) <= maxSize {
		return output, false
	}

	cut := maxSize
	for cut > 0 && !utf8.RuneStart(output[cut]) {
		cut--
	}

	log.Warn().
		Int("original", len(output)).
		Int("truncated", cut).
		Msg("Output truncated")

	return output[:cut] + "\n... [output truncated]", true
}
