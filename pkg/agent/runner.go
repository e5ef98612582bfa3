package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/reactor/internal/observability"
	"github.com/harun/reactor/internal/tracing"
	"github.com/harun/reactor/pkg/planner"
	"github.com/harun/reactor/pkg/toolexecutor"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ExhaustedAnswer is the answer of a run that used its whole turn budget.
const ExhaustedAnswer = "maximum turns reached"

// Status is the terminal state of a run.
type Status string

const (
	StatusDone      Status = "done"
	StatusExhausted Status = "exhausted"
	StatusFailed    Status = "failed"
)

// ToolRegistry is the part of the tool registry the runner uses.
type ToolRegistry interface {
	ListTools() []toolexecutor.ToolDefinition
	Execute(ctx context.Context, name string, params map[string]interface{}) (string, error)
}

// Memory supplies prompt context and records every turn.
type Memory interface {
	AddMessage(ctx context.Context, role, text string) error
	ConstructPrompt(ctx context.Context, query string, k int) (string, error)
}

// RunResult is the outcome of one run. On a backend failure it holds
// everything up to and including the ErrorTurn.
type RunResult struct {
	RunID      string       `json:"run_id"`
	Answer     string       `json:"answer"`
	Status     Status       `json:"status"`
	Turns      int          `json:"turns"`
	Transcript []Turn       `json:"-"`
	Outputs    []StepResult `json:"outputs"`
}

// Runner drives the reason-act loop.
type Runner struct {
	provider LLMProvider
	tools    ToolRegistry
	memory   Memory
	logger   zerolog.Logger
	opts     Options
}

// Config holds runner configuration
type Config struct {
	Provider LLMProvider
	Tools    ToolRegistry
	// Memory is optional.
	Memory  Memory
	Logger  zerolog.Logger
	Options Options
}

// NewRunner creates a new agent runner
func NewRunner(cfg Config) (*Runner, error) {
	observability.EnsureRegistered()

	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tool registry is required")
	}

	opts := cfg.Options
	defaults := DefaultOptions()
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = defaults.MaxTurns
	}
	if opts.TopK <= 0 {
		opts.TopK = defaults.TopK
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaults.MaxTokens
	}

	return &Runner{
		provider: cfg.Provider,
		tools:    cfg.Tools,
		memory:   cfg.Memory,
		logger:   cfg.Logger,
		opts:     opts,
	}, nil
}

// Run executes the loop for one prompt until the model answers without a plan
// or MaxTurns model calls have been made. The returned error is non-nil only
// for a backend failure, and wraps ErrBackendFailure.
func (r *Runner) Run(ctx context.Context, prompt string) (*RunResult, error) {
	ctx = tracing.NewRunContext(ctx, "reactor")
	ctx, span := tracing.StartSpan(
		ctx,
		"reactor.agent",
		"agent.run",
		attribute.String("provider", r.provider.Provider()),
		attribute.Int("max_turns", r.opts.MaxTurns),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, r.logger)

	start := time.Now()
	result := &RunResult{RunID: tracing.GetRunID(ctx)}
	defer func() {
		observability.RecordAgentRun(r.provider.Provider(), time.Since(start), result.Status != StatusFailed)
		observability.RecordAgentTurns(string(result.Status), result.Turns)
		span.SetAttributes(
			attribute.String("status", string(result.Status)),
			attribute.Int("turns", result.Turns),
		)
	}()

	logger.Info().Int("max_turns", r.opts.MaxTurns).Msg("Agent run started")
	opening := r.openingPrompt(ctx, logger, prompt)
	r.appendTurn(ctx, logger, result, UserTurn{Content: prompt})

	corrected := false
	for result.Turns < r.opts.MaxTurns {
		result.Turns++
		turnLogger := logger.With().Int("turn", result.Turns).Logger()

		rendered := r.renderPrompt(opening, result.Transcript)
		turnLogger.Trace().Str("prompt", rendered).Msg("Rendered prompt")

		reply, err := r.callModel(ctx, rendered)
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrBackendFailure, err)
			r.appendTurn(ctx, turnLogger, result, ErrorTurn{Err: err})
			result.Status = StatusFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			turnLogger.Error().Err(err).Msg("Model call failed")
			return result, err
		}
		turnLogger.Trace().Str("reply", reply).Msg("Model reply")

		plan, err := planner.ExtractPlan(reply)
		if err != nil {
			if r.opts.CorrectivePlans && !corrected && result.Turns < r.opts.MaxTurns && looksLikePlanAttempt(reply) {
				corrected = true
				turnLogger.Debug().Err(err).Msg("Reply held no valid plan, asking for a correction")
				r.appendTurn(ctx, turnLogger, result, AssistantTurn{Content: reply})
				r.appendTurn(ctx, turnLogger, result, UserTurn{Content: correctiveInstruction})
				continue
			}

			r.appendTurn(ctx, turnLogger, result, AssistantTurn{Content: reply})
			result.Answer = reply
			result.Status = StatusDone
			turnLogger.Info().Msg("Agent run finished")
			return result, nil
		}

		r.appendTurn(ctx, turnLogger, result, AssistantTurn{Content: reply})
		turnLogger.Debug().Int("steps", len(plan.Steps)).Str("plan_id", plan.ID).Msg("Executing plan")

		steps := r.ExecutePlan(ctx, plan, result.Outputs)
		for _, step := range steps {
			r.appendTurn(ctx, turnLogger, result, step.Turn())
		}
		result.Outputs = append(result.Outputs, steps...)
	}

	result.Answer = ExhaustedAnswer
	result.Status = StatusExhausted
	logger.Warn().Int("turns", result.Turns).Msg("Agent run exhausted its turn budget")
	return result, nil
}

// ExecutePlan runs every step of plan and returns one result per step, in
// step order. Placeholders resolve against prior only. Failures are recorded
// in the step's result and never stop the other steps.
func (r *Runner) ExecutePlan(ctx context.Context, plan *planner.Plan, prior []StepResult) []StepResult {
	logger := tracing.LoggerFromContext(ctx, r.logger)
	results := make([]StepResult, len(plan.Steps))

	run := func(i int, step planner.Step) {
		if step.Err != nil {
			results[i] = StepResult{Tool: step.Tool, Err: step.Err}
			logger.Debug().Int("step", i+1).Err(step.Err).Msg("Skipping malformed step")
			return
		}

		args := SubstituteArgs(step.Args, prior)
		logger.Debug().Int("step", i+1).Str("tool", step.Tool).Interface("args", args).Msg("Tool call")

		output, err := r.tools.Execute(ctx, step.Tool, args)
		results[i] = StepResult{Tool: step.Tool, Output: output, Err: err}

		if err != nil {
			logger.Debug().Int("step", i+1).Str("tool", step.Tool).Err(err).Msg("Tool failed")
		} else {
			logger.Debug().Int("step", i+1).Str("tool", step.Tool).Str("output", output).Msg("Tool result")
		}
	}

	if !r.opts.ParallelSteps {
		for i, step := range plan.Steps {
			run(i, step)
		}
		return results
	}

	var wg sync.WaitGroup
	for i, step := range plan.Steps {
		wg.Add(1)
		go func(i int, step planner.Step) {
			defer wg.Done()
			run(i, step)
		}(i, step)
	}
	wg.Wait()

	return results
}

// openingPrompt returns the text the first user turn is rendered as. With
// memory attached it is the memory-augmented prompt, built once before the
// prompt itself is mirrored so the history shows only earlier exchanges.
func (r *Runner) openingPrompt(ctx context.Context, logger zerolog.Logger, prompt string) string {
	if r.memory == nil {
		return prompt
	}
	augmented, err := r.memory.ConstructPrompt(ctx, prompt, r.opts.TopK)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to build memory prompt, using the bare prompt")
		return prompt
	}
	return augmented
}

// renderPrompt renders the system preamble and the whole run transcript, with
// the first user turn shown as opening.
func (r *Runner) renderPrompt(opening string, transcript []Turn) string {
	turns := make([]Turn, 0, len(transcript))
	turns = append(turns, UserTurn{Content: opening})
	if len(transcript) > 1 {
		turns = append(turns, transcript[1:]...)
	}
	return SystemPrompt(r.tools.ListTools()) + "\n" + RenderTranscript(turns)
}

func (r *Runner) callModel(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	response, err := r.provider.Call(ctx, LLMRequest{
		Model:       r.opts.Model,
		Prompt:      prompt,
		Temperature: r.opts.Temperature,
		MaxTokens:   r.opts.MaxTokens,
	})
	observability.RecordModelCall(r.provider.Provider(), time.Since(start))
	if err != nil {
		return "", err
	}
	if response == nil {
		return "", errors.New("provider returned no response")
	}
	return response.Content, nil
}

func (r *Runner) appendTurn(ctx context.Context, logger zerolog.Logger, result *RunResult, t Turn) {
	result.Transcript = append(result.Transcript, t)

	if r.memory == nil {
		return
	}
	if err := r.memory.AddMessage(ctx, string(t.Role()), t.Text()); err != nil {
		logger.Warn().Err(err).Str("role", string(t.Role())).Msg("Failed to mirror turn into memory")
	}
}
