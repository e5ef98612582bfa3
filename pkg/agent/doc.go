// Package agent runs the reason-act loop and provides the model backends.
//
// Invariants:
// - Exactly one model call per turn, and at most Options.MaxTurns turns per run.
// - Results of a plan are returned in step order regardless of completion order.
// - Placeholders ($N.output) resolve against outputs of earlier turns only.
// - Tool failures become transcript entries; only backend failures end a run with an error.
//
// Usage:
//
//	runner, _ := agent.NewRunner(agent.Config{
//		Provider: agent.NewAnthropicProvider(key, ""),
//		Tools:    registry,
//		Options:  agent.DefaultOptions(),
//	})
//	result, err := runner.Run(ctx, "list the files in ./docs")
//	_ = result
package agent
